package team

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Protocol-Lattice/design-team/src/models"
	"github.com/Protocol-Lattice/design-team/src/staging"
)

// routedModel answers through respond and records prompts. It also
// implements Verifier and io.Closer so lifecycle handling can be observed.
type routedModel struct {
	mu        sync.Mutex
	respond   func(prompt string) (string, error)
	prompts   []string
	verifyErr error
	closed    int
}

func (m *routedModel) Generate(_ context.Context, prompt string) (any, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	respond := m.respond
	m.mu.Unlock()
	if respond == nil {
		return "Final Answer: ok", nil
	}
	return respond(prompt)
}

func (m *routedModel) Verify(context.Context) error { return m.verifyErr }

func (m *routedModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *routedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// imageThenAnswer calls image_analysis with the payload found in the
// question, then echoes the observation as the final answer.
func imageThenAnswer(prompt string) (string, error) {
	if q := strings.LastIndex(prompt, "\nQuestion: "); q >= 0 {
		prompt = prompt[q:]
	}
	if idx := strings.LastIndex(prompt, "\nObservation: "); idx >= 0 {
		obs := prompt[idx+len("\nObservation: "):]
		obs = strings.TrimSuffix(obs, "\nThought: ")
		return "Thought: I now know the final answer\nFinal Answer: " + obs, nil
	}
	idx := strings.LastIndex(prompt, "Tool input:\n")
	if idx < 0 {
		return "", errors.New("no tool input in prompt")
	}
	payload := strings.SplitN(prompt[idx+len("Tool input:\n"):], "\n", 2)[0]
	return "Thought: look at the images\nAction: image_analysis\nAction Input: " + payload, nil
}

func factoryFor(m models.Agent) ModelFactory {
	return func(context.Context, string) (models.Agent, error) { return m, nil }
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) (string, error) {
	return "competitors favour dark dashboards", nil
}

func newTestSession(t *testing.T, m models.Agent, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithModelFactory(factoryFor(m)),
		WithSearcher(stubSearcher{}),
		WithStager(staging.NewStager(t.TempDir())),
	}
	sess, err := NewSession(context.Background(), "test-key", append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func design(name string) staging.Upload {
	return staging.Upload{Name: name, Content: strings.NewReader("png-bytes")}
}
