package team

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/design-team/src/helpers"
	"github.com/universal-tool-calling-protocol/go-utcp/src/providers/base"
	utcptools "github.com/universal-tool-calling-protocol/go-utcp/src/tools"
)

const (
	// UTCPProviderName prefixes every tool name in the manual.
	UTCPProviderName = "designteam"
	// UTCPContextKey is the key of the call context map that may carry a
	// context.Context for the dispatch.
	UTCPContextKey = "context"
)

var errNoImagePaths = errors.New("image_paths must list at least one image")

// UTCPToolName is the manual name of the tool serving t, e.g.
// "designteam.vision".
func UTCPToolName(t AnalysisType) string {
	switch t {
	case VisualDesign:
		return UTCPProviderName + ".vision"
	case UserExperience:
		return UTCPProviderName + ".ux"
	case MarketAnalysis:
		return UTCPProviderName + ".market"
	default:
		return UTCPProviderName + "." + strings.ToLower(strings.ReplaceAll(string(t), " ", "_"))
	}
}

// ProviderFunc returns the provider a client uses to reach the named tool.
type ProviderFunc func(toolName string) base.Provider

// InProcessProvider marks tools whose handler runs in this process.
func InProcessProvider(string) base.Provider {
	return &base.BaseProvider{Name: UTCPProviderName, ProviderType: base.ProviderCLI}
}

// UTCPTools describes each analysis of the session as a UTCP tool.
// Handlers dispatch with RunAnalysis, so they share the session's
// serialization and closed state. A nil providerFor means in-process.
func (s *Session) UTCPTools(providerFor ProviderFunc) []utcptools.Tool {
	if providerFor == nil {
		providerFor = InProcessProvider
	}
	out := make([]utcptools.Tool, 0, len(AnalysisTypes))
	for _, t := range AnalysisTypes {
		if _, ok := s.profiles[t]; !ok {
			continue
		}
		name := UTCPToolName(t)
		out = append(out, utcptools.Tool{
			Name:        name,
			Description: t.Title() + " of the given design images.",
			Tags:        []string{"design", "analysis"},
			Provider:    providerFor(name),
			Inputs: utcptools.ToolInputOutputSchema{
				Type: "object",
				Properties: map[string]any{
					"image_paths": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Paths of staged images to analyze.",
					},
					"focus_elements": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": FocusElements},
						"description": "Design aspects to emphasise.",
					},
					"context": map[string]any{
						"type":        "string",
						"description": "Product or audience context.",
					},
				},
				Required: []string{"image_paths"},
			},
			Outputs: utcptools.ToolInputOutputSchema{
				Type: "object",
				Properties: map[string]any{
					"title":  map[string]any{"type": "string"},
					"output": map[string]any{"type": "string"},
					"state":  map[string]any{"type": "string"},
				},
			},
			Handler: s.utcpHandler(t),
		})
	}
	return out
}

// UTCPTool looks a tool up by its manual name.
func (s *Session) UTCPTool(name string) (utcptools.Tool, bool) {
	for _, tool := range s.UTCPTools(nil) {
		if strings.EqualFold(tool.Name, name) {
			return tool, true
		}
	}
	return utcptools.Tool{}, false
}

func (s *Session) utcpHandler(t AnalysisType) utcptools.ToolHandler {
	return func(callCtx map[string]interface{}, inputs map[string]interface{}) (map[string]interface{}, error) {
		ctx := context.Background()
		if c, ok := callCtx[UTCPContextKey].(context.Context); ok && c != nil {
			ctx = c
		}

		paths, err := stringList(inputs["image_paths"])
		if err != nil {
			return nil, fmt.Errorf("image_paths: %w", err)
		}
		if len(paths) == 0 {
			return nil, errNoImagePaths
		}
		rawFocus, err := stringList(inputs["focus_elements"])
		if err != nil {
			return nil, fmt.Errorf("focus_elements: %w", err)
		}
		focus, err := ParseFocusElements(rawFocus)
		if err != nil {
			return nil, err
		}
		userContext, _ := inputs["context"].(string)

		res := s.RunAnalysis(ctx, t, focus, userContext, paths)
		out := map[string]interface{}{
			"type":   string(res.Type),
			"title":  res.Title,
			"output": res.Output,
			"state":  res.State.String(),
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		return out, nil
	}
}

// stringList accepts a JSON array of strings or a comma separated string.
func stringList(v interface{}) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return helpers.ParseCSVList(x), nil
	case []string:
		return x, nil
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
}
