package agent

import "context"

// ToolSpec describes how the agent should present a tool to the model.
type ToolSpec struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema map[string]any   `json:"input_schema,omitempty"`
	Examples    []map[string]any `json:"examples,omitempty"`
}

// ToolRequest captures an invocation request for a tool.
//
// Input is the raw "Action Input" emitted by the model. Arguments holds the
// same input decoded as a JSON object when possible, or {"input": Input}
// otherwise.
type ToolRequest struct {
	RunID     string
	Input     string
	Arguments map[string]any
}

// ToolResponse represents the structured response returned by a tool.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

// ToolCatalog maintains an ordered set of tools and provides lookup by name.
type ToolCatalog interface {
	Register(tool Tool) error
	Lookup(name string) (Tool, ToolSpec, bool)
	Specs() []ToolSpec
	Tools() []Tool
}

// Input is a single invocation of the reasoning loop.
type Input struct {
	// Instruction is rendered into the {input} slot of the template.
	Instruction string
	// ToolInput is the structured payload the instruction refers to. It is
	// appended to the question so the model can hand it to a tool verbatim.
	ToolInput string
}

// Step is one completed think/act/observe iteration. Log is the raw model
// text that produced the action and is replayed in the scratchpad.
type Step struct {
	Log         string
	Thought     string
	Action      string
	ActionInput string
	Observation string
}

// Output is the result of a finished reasoning loop.
type Output struct {
	Text  string
	Steps []Step
}
