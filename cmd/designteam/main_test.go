package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Protocol-Lattice/design-team/src/config"
	"github.com/Protocol-Lattice/design-team/src/staging"
	"github.com/Protocol-Lattice/design-team/src/team"
)

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) (string, error) { return "three rivals", nil }

func dummyOptions(t *testing.T) []team.Option {
	t.Helper()
	cfg := config.Default()
	cfg.Model.Provider = "dummy"
	cfg.Model.Name = ""
	cfg.Staging.Dir = t.TempDir()
	return append(sessionOptions(cfg), team.WithSearcher(stubSearcher{}))
}

func TestRunOncePrintsSections(t *testing.T) {
	t.Setenv("AGENT_LLM_CACHE_SIZE", "")
	path := filepath.Join(t.TempDir(), "home.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out bytes.Buffer
	code := runOnce(context.Background(), &out, "dummy", team.Selection{
		Designs: []staging.Upload{{Name: "home.png", Content: f}},
		Types:   []string{"Visual Design", "Market Analysis"},
	}, dummyOptions(t))

	if code != 0 {
		t.Fatalf("exit code = %d, output:\n%s", code, out.String())
	}
	got := out.String()
	for _, want := range []string{
		"🎨 Visual Design Analysis",
		"Analysis complete for 1 images",
		"📊 Market Analysis",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunOnceWarnsWithoutDesigns(t *testing.T) {
	var out bytes.Buffer
	code := runOnce(context.Background(), &out, "dummy", team.Selection{}, dummyOptions(t))
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	if !strings.Contains(out.String(), "Warning: Please upload at least one design to analyze.") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunOnceReportsUnopenableDesign(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.png")
	uploads, closers := openFiles([]string{missing}, nil)
	if len(uploads) != 1 || len(closers) != 0 {
		t.Fatalf("got %d uploads and %d closers, want 1 and 0", len(uploads), len(closers))
	}

	var out bytes.Buffer
	code := runOnce(context.Background(), &out, "dummy", team.Selection{
		Designs: uploads,
		Types:   []string{"Visual Design"},
	}, dummyOptions(t))
	if code != 2 {
		t.Fatalf("exit code = %d, want 2, output:\n%s", code, out.String())
	}
	for _, want := range []string{
		"Warning: Error processing image gone.png",
		"Warning: No images were successfully processed.",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunOnceRejectsEmptyKey(t *testing.T) {
	var out bytes.Buffer
	if code := runOnce(context.Background(), &out, "", team.Selection{}, dummyOptions(t)); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Error initializing agents") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestCredential(t *testing.T) {
	cfg := config.Default()
	cfg.Model.APIKey = ""
	if got := credential(cfg); got != "" {
		t.Fatalf("gemini without key: got %q", got)
	}
	cfg.Model.Provider = "ollama"
	if got := credential(cfg); got != "ollama" {
		t.Fatalf("ollama: got %q", got)
	}
	cfg.Model.APIKey = "k"
	if got := credential(cfg); got != "k" {
		t.Fatalf("explicit key: got %q", got)
	}
}
