package team

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Protocol-Lattice/design-team/src/models"
)

func TestNewSessionRejectsMalformedCredential(t *testing.T) {
	called := false
	factory := func(context.Context, string) (models.Agent, error) {
		called = true
		return &routedModel{}, nil
	}
	for _, cred := range []string{"", "has space", "tab\tkey", "line\n"} {
		sess, err := NewSession(context.Background(), cred, WithModelFactory(factory))
		var ierr *InitializationError
		if !errors.As(err, &ierr) {
			t.Fatalf("credential %q: expected InitializationError, got %v", cred, err)
		}
		if sess != nil {
			t.Fatalf("credential %q: expected no session", cred)
		}
	}
	if called {
		t.Fatal("factory must not be called for malformed credentials")
	}
}

func TestNewSessionConnectFailure(t *testing.T) {
	boom := errors.New("dial failed")
	factory := func(context.Context, string) (models.Agent, error) { return nil, boom }

	sess, err := NewSession(context.Background(), "key", WithModelFactory(factory))
	if sess != nil {
		t.Fatal("expected no session")
	}
	var ierr *InitializationError
	if !errors.As(err, &ierr) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped InitializationError, got %v", err)
	}
	if err.Error() != "Error initializing agents: dial failed" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestNewSessionVerifyFailureClosesConnection(t *testing.T) {
	m := &routedModel{verifyErr: errors.New("API key not valid")}
	sess, err := NewSession(context.Background(), "key", WithModelFactory(factoryFor(m)))
	if sess != nil || err == nil {
		t.Fatalf("expected failure, got %v, %v", sess, err)
	}
	if m.closed != 1 {
		t.Fatalf("connection should be closed once, closed = %d", m.closed)
	}
}

func TestNewSessionSkipsVerifyWhenDisabled(t *testing.T) {
	m := &routedModel{verifyErr: errors.New("offline")}
	sess, err := NewSession(context.Background(), "key", WithModelFactory(factoryFor(m)), WithVerify(false))
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	_ = sess.Close()
}

func TestNewSessionProfiles(t *testing.T) {
	sess := newTestSession(t, &routedModel{})

	want := map[AnalysisType][]string{
		VisualDesign:   {"image_analysis"},
		UserExperience: {"image_analysis"},
		MarketAnalysis: {"duckduckgo_search", "image_analysis"},
	}
	profiles := sess.Profiles()
	if len(profiles) != 3 {
		t.Fatalf("profiles = %d", len(profiles))
	}
	for i, p := range profiles {
		if p.Type != AnalysisTypes[i] {
			t.Errorf("profile %d type = %s", i, p.Type)
		}
		if got := p.ToolNames(); !reflect.DeepEqual(got, want[p.Type]) {
			t.Errorf("%s tools = %v, want %v", p.Type, got, want[p.Type])
		}
	}
}

func TestProfilesShareOneConnection(t *testing.T) {
	m := &routedModel{}
	sess := newTestSession(t, m)
	for _, p := range sess.Profiles() {
		if _, err := p.Invoke(context.Background(), inputFor(p.Type)); err != nil {
			t.Fatalf("%s: %v", p.Type, err)
		}
	}
	if m.calls() != 3 {
		t.Fatalf("all profiles should use the same connection, calls = %d", m.calls())
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	m := &routedModel{}
	sess := newTestSession(t, m)
	_ = sess.Close()
	_ = sess.Close()
	if m.closed != 1 {
		t.Fatalf("closed = %d", m.closed)
	}
	res := sess.RunAnalysis(context.Background(), VisualDesign, nil, "", []string{"/a.png"})
	if !errors.Is(res.Err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", res.Err)
	}
}

func TestNewProfileValidation(t *testing.T) {
	if _, err := NewProfile(nil, ProfileConfig{Type: VisualDesign}); err == nil {
		t.Fatal("expected error without connection")
	}
	if _, err := NewProfile(&routedModel{}, ProfileConfig{Name: "x", Type: "Copy"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
	if _, err := NewProfile(&routedModel{}, ProfileConfig{Name: "x", Type: VisualDesign}); err == nil {
		t.Fatal("expected error without tools")
	}
}
