package team

import (
	"context"
	"errors"
	"fmt"
	"strings"

	agent "github.com/Protocol-Lattice/design-team"
	"github.com/Protocol-Lattice/design-team/src/staging"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

// State tracks a single dispatch.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateReasoning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateReasoning:
		return "reasoning"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AnalysisResult is what one profile produced. On failure Err is set and
// Output holds the message shown to the user.
type AnalysisResult struct {
	Type   AnalysisType
	Title  string
	Output string
	Err    error
	State  State
	Steps  []agent.Step
}

// Failed reports whether the dispatch ended in an error.
func (r AnalysisResult) Failed() bool { return r.State == StateFailed }

// RunAnalysis dispatches one request to the profile serving t. Errors and
// panics are confined to the returned result.
func (s *Session) RunAnalysis(ctx context.Context, t AnalysisType, focus []string, userContext string, paths []string) AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, t, focus, userContext, paths)
}

func (s *Session) runLocked(ctx context.Context, t AnalysisType, focus []string, userContext string, paths []string) (res AnalysisResult) {
	runID := uuid.NewString()
	res = AnalysisResult{Type: t, Title: t.Title(), State: StateIdle}

	fail := func(err error) {
		derr := &DispatchError{Type: t, Err: err}
		res.Err = derr
		res.Output = derr.Error()
		res.State = StateFailed
		klog.Warningf("dispatch %s (%s): %v", t, runID, err)
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	if s.closed {
		fail(ErrSessionClosed)
		return res
	}
	profile, ok := s.profiles[t]
	if !ok {
		fail(fmt.Errorf("unknown analysis type %q", t))
		return res
	}

	res.State = StateComposing
	req := ComposeRequest(t, focus, userContext, paths)

	res.State = StateReasoning
	klog.V(2).Infof("dispatch %s (%s): %d image(s) to profile %s", t, runID, len(req.ImagePaths), profile.Name)
	out, err := profile.Invoke(ctx, agent.Input{
		Instruction: req.Instruction(),
		ToolInput:   req.Payload(),
	})
	res.Steps = out.Steps
	if err != nil {
		fail(err)
		return res
	}
	if strings.TrimSpace(out.Text) == "" {
		res.Err = &DispatchError{Type: t, Err: ErrNoOutput}
		res.Output = ErrNoOutput.Error()
		res.State = StateFailed
		return res
	}

	res.Output = out.Text
	res.State = StateCompleted
	klog.V(2).Infof("dispatch %s (%s): completed after %d step(s)", t, runID, len(out.Steps))
	return res
}

// Selection is one press of "run analysis".
type Selection struct {
	Designs     []staging.Upload
	Competitors []staging.Upload
	// Types are analysis type names. Empty selects Visual Design.
	Types         []string
	FocusElements []string
	Context       string
}

// Report collects per-type results and non-fatal warnings.
type Report struct {
	Results    []AnalysisResult
	Warnings   []string
	ImagePaths []string
}

// Run stages the uploads once and dispatches every selected analysis type
// in order. Nothing is dispatched when there are no designs or no upload
// could be staged.
func (s *Session) Run(ctx context.Context, sel Selection) (Report, error) {
	var report Report

	types, err := ParseAnalysisTypes(sel.Types)
	if err != nil {
		return report, err
	}
	if len(types) == 0 {
		types = []AnalysisType{VisualDesign}
	}
	focus, err := ParseFocusElements(sel.FocusElements)
	if err != nil {
		return report, err
	}

	if len(sel.Designs) == 0 {
		report.Warnings = append(report.Warnings, ErrNoDesigns.Error())
		return report, ErrNoDesigns
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return report, ErrSessionClosed
	}

	staged := s.stager.StageAll(ctx, sel.Designs, sel.Competitors)
	for _, w := range staged.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}
	if len(staged.Paths) == 0 {
		report.Warnings = append(report.Warnings, ErrNoImages.Error())
		return report, ErrNoImages
	}
	report.ImagePaths = staged.Paths

	for _, t := range types {
		res := s.runLocked(ctx, t, focus, sel.Context, staged.Paths)
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// IsWarning reports whether err is one of the user-facing warnings that
// stop a run before any dispatch.
func IsWarning(err error) bool {
	return errors.Is(err, ErrNoDesigns) || errors.Is(err, ErrNoImages)
}
