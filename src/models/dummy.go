package models

import (
	"context"
	"fmt"
	"strings"
)

// DummyLLM is an offline model that speaks just enough of the reasoning
// grammar to drive a full tool round trip. On the first turn it hands the
// question's tool input to the first listed tool; once an observation is in
// the scratchpad it answers with that observation. It prefers the image tool
// when one is offered so offline runs never reach the network.
type DummyLLM struct {
	Prefix string
}

func NewDummyLLM(prefix string) *DummyLLM {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &DummyLLM{Prefix: prefix}
}

func (d *DummyLLM) Generate(_ context.Context, prompt string) (any, error) {
	turn := prompt
	if idx := strings.LastIndex(prompt, "\nQuestion:"); idx >= 0 {
		turn = prompt[idx:]
	}

	if idx := strings.LastIndex(turn, "\nObservation: "); idx >= 0 {
		observation := turn[idx+len("\nObservation: "):]
		if end := strings.LastIndex(observation, "\nThought:"); end >= 0 {
			observation = observation[:end]
		}
		observation = strings.TrimSpace(observation)
		return fmt.Sprintf("Thought: I now know the final answer\nFinal Answer: %s %s", d.Prefix, observation), nil
	}

	tool := pickTool(prompt)
	payload := ""
	if idx := strings.LastIndex(turn, "Tool input:\n"); idx >= 0 {
		payload = firstLine(turn[idx+len("Tool input:\n"):])
	}
	if tool != "" && payload != "" {
		return fmt.Sprintf("Thought: I should use %s\nAction: %s\nAction Input: %s", tool, tool, payload), nil
	}

	last := lastNonEmptyLine(turn)
	if last == "" {
		last = "<empty prompt>"
	}
	return fmt.Sprintf("Thought: I now know the final answer\nFinal Answer: %s %s", d.Prefix, last), nil
}

const dummyPreferredTool = "image_analysis"

// pickTool reads the tool names out of "Action: ... one of [a, b]" and
// returns the preferred tool when listed, else the first.
func pickTool(prompt string) string {
	const marker = "should be one of ["
	idx := strings.Index(prompt, marker)
	if idx < 0 {
		return ""
	}
	rest := prompt[idx+len(marker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return ""
	}
	var first string
	for _, name := range strings.Split(rest[:end], ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.EqualFold(name, dummyPreferredTool) {
			return name
		}
		if first == "" {
			first = name
		}
	}
	return first
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return candidate
		}
	}
	return ""
}

var _ Agent = (*DummyLLM)(nil)
