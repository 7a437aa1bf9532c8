package team

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestComposeRequestQuery(t *testing.T) {
	req := ComposeRequest(VisualDesign, []string{"Color Scheme", "Layout"}, "fintech app", []string{"/t/temp_a.png"})
	want := "Analysis type: Visual Design\nFocus elements: Color Scheme, Layout\nContext: fintech app"
	if got := req.Query(); got != want {
		t.Fatalf("Query() = %q, want %q", got, want)
	}
}

func TestComposeRequestPayloadRoundTrip(t *testing.T) {
	paths := []string{"/t/temp_b.png", "/t/temp_a.png", "/t/temp_b.png"}
	req := ComposeRequest(MarketAnalysis, nil, "", paths)

	payload := req.Payload()
	if payload != req.Payload() {
		t.Fatal("payload must be deterministic")
	}

	var decoded struct {
		Query      string   `json:"query"`
		ImagePaths []string `json:"image_paths"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Query != req.Query() {
		t.Errorf("query = %q", decoded.Query)
	}
	if strings.Join(decoded.ImagePaths, "|") != strings.Join(paths, "|") {
		t.Errorf("image paths = %v, want %v", decoded.ImagePaths, paths)
	}
}

func TestComposeRequestIsolatedFromCaller(t *testing.T) {
	focus := []string{"Typography"}
	paths := []string{"/a.png"}
	req := ComposeRequest(UserExperience, focus, "ctx", paths)
	before := req.Payload()

	focus[0] = "Branding"
	paths[0] = "/evil.png"
	if req.Payload() != before {
		t.Fatal("mutating caller slices changed the request")
	}
}

func TestComposeRequestEmptyPaths(t *testing.T) {
	req := ComposeRequest(VisualDesign, nil, "", nil)
	if !strings.Contains(req.Payload(), `"image_paths":[]`) {
		t.Fatalf("empty paths must encode as [], got %s", req.Payload())
	}
	if req.Query() != "Analysis type: Visual Design\nFocus elements: \nContext: " {
		t.Fatalf("query = %q", req.Query())
	}
}

func TestInstruction(t *testing.T) {
	req := ComposeRequest(VisualDesign, []string{"Layout"}, "c", nil)
	want := "Please analyze these designs using the image_analysis tool.\n" +
		"Analysis type: Visual Design\nFocus elements: Layout\nContext: c\n\n" +
		"You should:\n" +
		"1. Use the image_analysis tool with the provided images\n" +
		"2. Format your final answer as a clear analysis with markdown headers and bullet points"
	if got := req.Instruction(); got != want {
		t.Fatalf("Instruction() = %q", got)
	}
}
