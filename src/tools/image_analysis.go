package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	agent "github.com/Protocol-Lattice/design-team"
)

// ImageAnalysisName is the tool name the profiles and their prompts refer to.
const ImageAnalysisName = "image_analysis"

var (
	// ErrPayloadFormat reports tool input that is not a JSON object.
	ErrPayloadFormat = errors.New("Invalid JSON input format")
	// ErrContentValidation reports a payload without any image paths.
	ErrContentValidation = errors.New("No image paths provided in the tool input")
)

// ImageRequest is the decoded tool payload.
type ImageRequest struct {
	Query      string
	ImagePaths []string
}

// ImageAnalysisTool acknowledges a batch of staged images for a query. It
// does not inspect pixels; it is the contract point where a vision backend
// would plug in.
type ImageAnalysisTool struct{}

func NewImageAnalysisTool() *ImageAnalysisTool { return &ImageAnalysisTool{} }

func (t *ImageAnalysisTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        ImageAnalysisName,
		Description: "Analyzes design images and provides detailed feedback. Input must be a JSON object with 'query' and 'image_paths'.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for in the images.",
				},
				"image_paths": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Filesystem paths of the staged images.",
				},
			},
			"required": []any{"image_paths"},
		},
		Examples: []map[string]any{
			{"query": "Analysis type: Visual Design", "image_paths": []string{"/tmp/temp_home.png"}},
		},
	}
}

// Validate decodes the payload and returns a typed error for the two
// failure classes.
func (t *ImageAnalysisTool) Validate(input string) (ImageRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &raw); err != nil || raw == nil {
		return ImageRequest{}, ErrPayloadFormat
	}

	req := ImageRequest{}
	if q, ok := raw["query"]; ok && q != nil {
		req.Query = fmt.Sprint(q)
	}
	list, _ := raw["image_paths"].([]any)
	if len(list) == 0 {
		return req, ErrContentValidation
	}
	for _, p := range list {
		req.ImagePaths = append(req.ImagePaths, fmt.Sprint(p))
	}
	return req, nil
}

// Analyze returns the observation for one payload. Failures are reported as
// "Error: ..." strings so the reasoning loop can recover from them.
func (t *ImageAnalysisTool) Analyze(input string) string {
	req, err := t.Validate(input)
	if err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Analysis complete for %d images based on query: %s", len(req.ImagePaths), req.Query)
}

func (t *ImageAnalysisTool) Invoke(_ context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	input := req.Input
	if strings.TrimSpace(input) == "" && len(req.Arguments) > 0 {
		encoded, err := json.Marshal(req.Arguments)
		if err == nil {
			input = string(encoded)
		}
	}
	return agent.ToolResponse{Content: t.Analyze(input)}, nil
}

var _ agent.Tool = (*ImageAnalysisTool)(nil)
