package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/design-team/src/models"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

const defaultMaxIterations = 15

// ErrIterationLimit is returned when the model never reaches a final answer
// within the configured number of iterations.
var ErrIterationLimit = errors.New("agent stopped due to iteration limit")

// Agent runs a think/act/observe loop against a language model, dispatching
// actions to the tools in its catalog until the model emits a final answer.
type Agent struct {
	name          string
	model         models.Agent
	template      string
	maxIterations int
	handleParse   bool

	toolCatalog ToolCatalog
}

// Options configure a new Agent.
type Options struct {
	// Name identifies the agent in logs. Optional.
	Name  string
	Model models.Agent
	// Template is the instruction template. It must contain the {input} and
	// {agent_scratchpad} placeholders; {tools} and {tool_names} are optional.
	Template string
	Tools    []Tool
	// ToolCatalog overrides the default static catalog. Tools are registered
	// into it and duplicates are rejected.
	ToolCatalog ToolCatalog
	// MaxIterations bounds the loop (default 15).
	MaxIterations int
	// HandleParsingErrors feeds malformed model output back as an observation
	// instead of failing the invocation.
	HandleParsingErrors bool
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a language model")
	}

	template := opts.Template
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	for _, placeholder := range []string{"{input}", "{agent_scratchpad}"} {
		if !strings.Contains(template, placeholder) {
			return nil, fmt.Errorf("agent template is missing %s", placeholder)
		}
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	toolCatalog := opts.ToolCatalog
	tolerantTools := false
	if toolCatalog == nil {
		toolCatalog = NewStaticToolCatalog(nil)
		tolerantTools = true
	}
	for _, tool := range opts.Tools {
		if tool == nil {
			continue
		}
		if err := toolCatalog.Register(tool); err != nil {
			if tolerantTools {
				continue
			}
			return nil, err
		}
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "agent"
	}

	return &Agent{
		name:          name,
		model:         opts.Model,
		template:      template,
		maxIterations: maxIterations,
		handleParse:   opts.HandleParsingErrors,
		toolCatalog:   toolCatalog,
	}, nil
}

// Name returns the agent's log name.
func (a *Agent) Name() string { return a.name }

// Invoke runs the reasoning loop for one question and returns the final answer.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	question := buildQuestion(in)
	if question == "" {
		return Output{}, errors.New("agent input is empty")
	}

	runID := uuid.NewString()
	specs := a.ToolSpecs()
	var steps []Step

	for i := 0; i < a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return Output{Steps: steps}, err
		}

		prompt := RenderTemplate(a.template, specs, question, formatScratchpad(steps))
		completion, err := a.model.Generate(ctx, prompt)
		if err != nil {
			return Output{Steps: steps}, fmt.Errorf("model generate: %w", err)
		}
		raw := cutAtObservation(completionText(completion))

		parsed, err := parseReActOutput(raw)
		if err != nil {
			var perr *OutputParseError
			if !a.handleParse || !errors.As(err, &perr) {
				return Output{Steps: steps}, err
			}
			klog.V(4).Infof("agent %s run %s: parse error fed back: %s", a.name, runID, perr.Reason)
			steps = append(steps, Step{Log: raw, Action: "_Exception", Observation: perr.Reason})
			continue
		}

		if parsed.IsFinal {
			klog.V(2).Infof("agent %s run %s: final answer after %d step(s)", a.name, runID, len(steps))
			return Output{Text: parsed.Final, Steps: steps}, nil
		}

		observation := a.act(ctx, runID, parsed)
		klog.V(4).Infof("agent %s run %s: %s(%s) -> %s", a.name, runID, parsed.Action, truncate(parsed.ActionInput, 120), truncate(observation, 120))
		steps = append(steps, Step{
			Log:         raw,
			Thought:     parsed.Thought,
			Action:      parsed.Action,
			ActionInput: parsed.ActionInput,
			Observation: observation,
		})
	}

	klog.Warningf("agent %s run %s: no final answer after %d iterations", a.name, runID, a.maxIterations)
	return Output{Steps: steps}, ErrIterationLimit
}

// act executes a single tool call. Failures are converted into observations
// so the model can recover on the next iteration.
func (a *Agent) act(ctx context.Context, runID string, step parsedStep) string {
	tool, spec, ok := a.lookupTool(step.Action)
	if !ok {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", step.Action, strings.Join(a.toolNames(), ", "))
	}
	resp, err := tool.Invoke(ctx, ToolRequest{
		RunID:     runID,
		Input:     step.ActionInput,
		Arguments: parseToolArguments(step.ActionInput),
	})
	if err != nil {
		return fmt.Sprintf("tool error: %s: %v", spec.Name, err)
	}
	return strings.TrimSpace(resp.Content)
}

func buildQuestion(in Input) string {
	instruction := strings.TrimSpace(in.Instruction)
	payload := strings.TrimSpace(in.ToolInput)
	switch {
	case payload == "":
		return instruction
	case instruction == "":
		return payload
	default:
		return instruction + "\n\nTool input:\n" + payload
	}
}

// completionText flattens provider results into text. Providers return
// strings, fmt.Stringer values or provider-specific parts.
func completionText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

func parseToolArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	if strings.HasPrefix(raw, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return payload
		}
	}
	if strings.HasPrefix(raw, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return map[string]any{"items": arr}
		}
	}
	return map[string]any{"input": raw}
}

func (a *Agent) lookupTool(name string) (Tool, ToolSpec, bool) {
	if a.toolCatalog == nil {
		return nil, ToolSpec{}, false
	}
	return a.toolCatalog.Lookup(name)
}

// ToolSpecs returns the registered tool specifications in deterministic order.
func (a *Agent) ToolSpecs() []ToolSpec {
	if a.toolCatalog == nil {
		return nil
	}
	return a.toolCatalog.Specs()
}

// Tools returns the registered tools in deterministic order.
func (a *Agent) Tools() []Tool {
	if a.toolCatalog == nil {
		return nil
	}
	return a.toolCatalog.Tools()
}

func (a *Agent) toolNames() []string {
	specs := a.ToolSpecs()
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max > 3 {
		return s[:max-3] + "..."
	}
	return s[:max]
}
