package team

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingFactory struct {
	mu      sync.Mutex
	built   map[string]int
	models  []*routedModel
	failFor string
}

func newCountingFactory(t *testing.T) *countingFactory {
	t.Helper()
	return &countingFactory{built: map[string]int{}}
}

func (f *countingFactory) build(ctx context.Context, credential string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if credential == f.failFor {
		return nil, &InitializationError{Err: errors.New("rejected")}
	}
	f.built[credential]++
	m := &routedModel{}
	f.models = append(f.models, m)
	return NewSession(ctx, credential, WithModelFactory(factoryFor(m)), WithSearcher(stubSearcher{}))
}

func TestRegistryOpenReusesSessionForSameCredential(t *testing.T) {
	f := newCountingFactory(t)
	r := NewRegistry(f.build, time.Minute)
	defer r.Close()

	id1, s1, err := r.Open(context.Background(), "key-a")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	id2, s2, _ := r.Open(context.Background(), "key-a")
	if id1 != id2 || s1 != s2 || f.built["key-a"] != 1 {
		t.Fatalf("expected reuse: %s/%s built=%d", id1, id2, f.built["key-a"])
	}

	id3, s3, _ := r.Open(context.Background(), "key-b")
	if id3 == id1 || s3 == s1 {
		t.Fatal("different credentials must get different sessions")
	}
	if got, ok := r.Get(id1); !ok || got != s1 {
		t.Fatal("Get should return the opened session")
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRegistryRebindReinitializesOnCredentialChange(t *testing.T) {
	f := newCountingFactory(t)
	r := NewRegistry(f.build, time.Minute)
	defer r.Close()

	id, s1, _ := r.Open(context.Background(), "key-a")

	same, err := r.Rebind(context.Background(), id, "key-a")
	if err != nil || same != s1 || f.built["key-a"] != 1 {
		t.Fatalf("same credential must not rebuild: %v", err)
	}

	s2, err := r.Rebind(context.Background(), id, "key-b")
	if err != nil {
		t.Fatalf("Rebind returned error: %v", err)
	}
	if s2 == s1 {
		t.Fatal("expected a new session")
	}
	if f.models[0].closed != 1 {
		t.Fatal("old session must be closed")
	}
	if got, _ := r.Get(id); got != s2 {
		t.Fatal("id should now resolve to the new session")
	}
}

func TestRegistryRebindFailureKeepsOldSession(t *testing.T) {
	f := newCountingFactory(t)
	f.failFor = "bad key"
	r := NewRegistry(f.build, time.Minute)
	defer r.Close()

	id, s1, _ := r.Open(context.Background(), "key-a")
	if _, err := r.Rebind(context.Background(), id, "bad key"); err == nil {
		t.Fatal("expected error")
	}
	if got, ok := r.Get(id); !ok || got != s1 {
		t.Fatal("old session should survive a failed rebind")
	}
	if f.models[0].closed != 0 {
		t.Fatal("old session must stay open")
	}
}

func TestRegistryOpenFailureLeavesNothingBehind(t *testing.T) {
	f := newCountingFactory(t)
	f.failFor = "bad key"
	r := NewRegistry(f.build, time.Minute)
	defer r.Close()

	if _, _, err := r.Open(context.Background(), "bad key"); err == nil {
		t.Fatal("expected error")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRegistryExpiryClosesSession(t *testing.T) {
	f := newCountingFactory(t)
	r := NewRegistry(f.build, 10*time.Millisecond)
	defer r.Close()

	id, _, _ := r.Open(context.Background(), "key-a")
	time.Sleep(30 * time.Millisecond)

	if _, ok := r.Get(id); ok {
		t.Fatal("session should have expired")
	}
	r.sessions.DeleteExpired()
	if f.models[0].closed != 1 {
		t.Fatal("expired session must be closed")
	}
}

func TestRegistryRemoveAndClose(t *testing.T) {
	f := newCountingFactory(t)
	r := NewRegistry(f.build, time.Minute)

	id, _, _ := r.Open(context.Background(), "key-a")
	_, _, _ = r.Open(context.Background(), "key-b")

	r.Remove(id)
	if _, ok := r.Get(id); ok {
		t.Fatal("removed session still present")
	}
	if f.models[0].closed != 1 {
		t.Fatal("removed session must be closed")
	}

	r.Close()
	if f.models[1].closed != 1 || r.Len() != 0 {
		t.Fatal("Close must close every session")
	}
}

// within fails the test when fn does not return in time.
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s blocked for more than %s", what, d)
	}
}

func TestRegistryRemoveDuringDispatchDoesNotBlockOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	slow := &routedModel{respond: func(string) (string, error) {
		once.Do(func() { close(started) })
		<-release
		return "Final Answer: done", nil
	}}
	factory := func(ctx context.Context, credential string) (*Session, error) {
		var m *routedModel
		if credential == "slow-key" {
			m = slow
		} else {
			m = &routedModel{}
		}
		return NewSession(ctx, credential, WithModelFactory(factoryFor(m)), WithSearcher(stubSearcher{}))
	}
	r := NewRegistry(factory, time.Minute)
	defer r.Close()
	ctx := context.Background()

	slowID, slowSess, err := r.Open(ctx, "slow-key")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	otherID, _, err := r.Open(ctx, "other-key")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		slowSess.RunAnalysis(ctx, VisualDesign, nil, "", []string{"a.png"})
	}()
	<-started

	removed := make(chan struct{})
	go func() {
		defer close(removed)
		r.Remove(slowID)
	}()
	for deadline := time.Now().Add(2 * time.Second); r.Len() != 1; {
		if time.Now().After(deadline) {
			close(release)
			t.Fatal("Remove never dropped the session")
		}
		time.Sleep(time.Millisecond)
	}

	within(t, 2*time.Second, "Get on an unrelated session", func() {
		if _, ok := r.Get(otherID); !ok {
			t.Error("unrelated session disappeared")
		}
	})
	within(t, 2*time.Second, "Open for a new credential", func() {
		if _, _, err := r.Open(ctx, "third-key"); err != nil {
			t.Errorf("Open returned error: %v", err)
		}
	})

	select {
	case <-removed:
		t.Fatal("Remove must wait for the dispatch in flight before closing")
	default:
	}
	close(release)
	<-runDone
	<-removed

	slow.mu.Lock()
	closed := slow.closed
	slow.mu.Unlock()
	if closed != 1 {
		t.Fatalf("removed session closed %d times, want 1", closed)
	}
}

func TestRegistryOpenBuildsOutsideLock(t *testing.T) {
	building := make(chan struct{})
	release := make(chan struct{})
	factory := func(ctx context.Context, credential string) (*Session, error) {
		if credential == "slow-key" {
			close(building)
			<-release
		}
		return NewSession(ctx, credential, WithModelFactory(factoryFor(&routedModel{})), WithSearcher(stubSearcher{}))
	}
	r := NewRegistry(factory, time.Minute)
	defer r.Close()
	ctx := context.Background()

	otherID, _, err := r.Open(ctx, "other-key")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	opened := make(chan error, 1)
	go func() {
		_, _, err := r.Open(ctx, "slow-key")
		opened <- err
	}()
	<-building

	within(t, 2*time.Second, "Get while another session initializes", func() {
		if _, ok := r.Get(otherID); !ok {
			t.Error("session missing")
		}
	})

	close(release)
	if err := <-opened; err != nil {
		t.Fatalf("slow Open returned error: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
}
