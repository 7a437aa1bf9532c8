package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	finalAnswerMarker = "Final Answer:"
	observationMarker = "Observation:"
)

// ReActFormat is the reasoning grammar appended to every instruction
// template. The placeholders are filled by RenderTemplate.
const ReActFormat = `Tools available:
{tools}

Use the following format:
Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{tool_names}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Question: {input}
{agent_scratchpad}`

// DefaultTemplate is used when Options.Template is empty.
const DefaultTemplate = "Answer the following question as best you can.\n\n" + ReActFormat

var (
	actionPattern     = regexp.MustCompile(`(?s)Action\s*\d*\s*:[\s]*(.*?)[\s]*Action\s*\d*\s*Input\s*\d*\s*:[\s]*(.*)`)
	actionOnlyPattern = regexp.MustCompile(`Action\s*\d*\s*:`)
)

// OutputParseError reports model output that follows neither the action nor
// the final-answer grammar.
type OutputParseError struct {
	Reason string
	Output string
}

func (e *OutputParseError) Error() string {
	return fmt.Sprintf("could not parse model output: %s", e.Reason)
}

// parsedStep is either an action (Action != "") or a finish (Final != "").
type parsedStep struct {
	Thought     string
	Action      string
	ActionInput string
	Final       string
	IsFinal     bool
}

// parseReActOutput interprets one completion in the ReAct grammar.
func parseReActOutput(text string) (parsedStep, error) {
	text = cutAtObservation(text)
	hasFinal := strings.Contains(text, finalAnswerMarker)

	if m := actionPattern.FindStringSubmatch(text); m != nil {
		if hasFinal {
			return parsedStep{}, &OutputParseError{
				Reason: "output contains both a final answer and a parse-able action",
				Output: text,
			}
		}
		input := strings.TrimSpace(m[2])
		input = strings.Trim(input, `"`)
		return parsedStep{
			Thought:     extractThought(text),
			Action:      strings.TrimSpace(m[1]),
			ActionInput: input,
		}, nil
	}

	if hasFinal {
		idx := strings.LastIndex(text, finalAnswerMarker)
		return parsedStep{
			Thought: extractThought(text[:idx]),
			Final:   strings.TrimSpace(text[idx+len(finalAnswerMarker):]),
			IsFinal: true,
		}, nil
	}

	if !actionOnlyPattern.MatchString(text) {
		return parsedStep{}, &OutputParseError{Reason: "Invalid Format: Missing 'Action:' after 'Thought:'", Output: text}
	}
	return parsedStep{}, &OutputParseError{Reason: "Invalid Format: Missing 'Action Input:' after 'Action:'", Output: text}
}

// cutAtObservation drops anything the model hallucinated after it asked for
// a tool: observations come from tools, never from the model.
func cutAtObservation(text string) string {
	if idx := strings.Index(text, "\n"+observationMarker); idx >= 0 {
		return text[:idx]
	}
	if strings.HasPrefix(strings.TrimSpace(text), observationMarker) {
		return ""
	}
	return text
}

func extractThought(text string) string {
	if idx := strings.Index(text, "Action"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Thought:")
	return strings.TrimSpace(text)
}

// formatScratchpad replays previous steps so the model can continue the loop.
func formatScratchpad(steps []Step) string {
	var sb strings.Builder
	for _, step := range steps {
		sb.WriteString(step.Log)
		sb.WriteString("\n")
		sb.WriteString(observationMarker)
		sb.WriteString(" ")
		sb.WriteString(step.Observation)
		sb.WriteString("\nThought: ")
	}
	return sb.String()
}

// RenderTemplate fills the {tools}, {tool_names}, {input} and
// {agent_scratchpad} placeholders in a single pass, so user text that happens
// to contain a placeholder is left untouched.
func RenderTemplate(template string, specs []ToolSpec, input, scratchpad string) string {
	var toolLines strings.Builder
	names := make([]string, 0, len(specs))
	for i, spec := range specs {
		if i > 0 {
			toolLines.WriteString("\n")
		}
		toolLines.WriteString(spec.Name)
		toolLines.WriteString(": ")
		toolLines.WriteString(spec.Description)
		names = append(names, spec.Name)
	}

	r := strings.NewReplacer(
		"{tools}", toolLines.String(),
		"{tool_names}", strings.Join(names, ", "),
		"{input}", input,
		"{agent_scratchpad}", scratchpad,
	)
	return r.Replace(template)
}
