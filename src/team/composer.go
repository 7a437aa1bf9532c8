package team

import (
	"encoding/json"
	"strings"
)

// AnalysisRequest is the immutable description of one dispatch.
type AnalysisRequest struct {
	Type          AnalysisType
	FocusElements []string
	Context       string
	ImagePaths    []string
}

// ComposeRequest copies its inputs so later mutation by the caller cannot
// leak into an in-flight request.
func ComposeRequest(t AnalysisType, focus []string, context string, paths []string) AnalysisRequest {
	return AnalysisRequest{
		Type:          t,
		FocusElements: append([]string(nil), focus...),
		Context:       context,
		ImagePaths:    append([]string{}, paths...),
	}
}

// Query renders the three-line description handed to the image tool.
func (r AnalysisRequest) Query() string {
	var b strings.Builder
	b.WriteString("Analysis type: ")
	b.WriteString(string(r.Type))
	b.WriteString("\nFocus elements: ")
	b.WriteString(strings.Join(r.FocusElements, ", "))
	b.WriteString("\nContext: ")
	b.WriteString(r.Context)
	return b.String()
}

type toolPayload struct {
	Query      string   `json:"query"`
	ImagePaths []string `json:"image_paths"`
}

// Payload serializes the request into the image_analysis tool input.
func (r AnalysisRequest) Payload() string {
	paths := r.ImagePaths
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(toolPayload{Query: r.Query(), ImagePaths: paths})
	if err != nil {
		// strings and string slices always marshal
		panic(err)
	}
	return string(data)
}

// Instruction is the question the profile's reasoning loop answers.
func (r AnalysisRequest) Instruction() string {
	var b strings.Builder
	b.WriteString("Please analyze these designs using the image_analysis tool.\n")
	b.WriteString(r.Query())
	b.WriteString("\n\nYou should:\n")
	b.WriteString("1. Use the image_analysis tool with the provided images\n")
	b.WriteString("2. Format your final answer as a clear analysis with markdown headers and bullet points")
	return b.String()
}
