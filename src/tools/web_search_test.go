package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	agent "github.com/Protocol-Lattice/design-team"
)

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"AbstractText": "Fintech apps favour minimal dashboards.",
			"RelatedTopics": [
				{"Text": "Neobank onboarding flows", "FirstURL": "https://x"},
				{"Name": "Group", "Topics": [{"Text": "Dark mode adoption"}, {"Text": "Card controls"}]},
				{"Text": ""}
			]
		}`))
	}))
	defer srv.Close()

	ddg := &DuckDuckGo{Endpoint: srv.URL, HTTPClient: srv.Client(), MaxResults: 3}
	got, err := ddg.Search(context.Background(), "fintech design trends")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if gotQuery != "fintech design trends" {
		t.Errorf("query = %q", gotQuery)
	}
	want := "Fintech apps favour minimal dashboards.\nNeobank onboarding flows\nDark mode adoption"
	if got != want {
		t.Fatalf("digest = %q, want %q", got, want)
	}
}

func TestDuckDuckGoSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ddg := &DuckDuckGo{Endpoint: srv.URL, HTTPClient: srv.Client()}
	if _, err := ddg.Search(context.Background(), "q"); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

type stubSearcher struct {
	calls  int32
	result string
	err    error
}

func (s *stubSearcher) Search(ctx context.Context, query string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.result, s.err
}

func TestWebSearchToolCachesByQuery(t *testing.T) {
	searcher := &stubSearcher{result: "trend digest"}
	tool := NewWebSearchTool(searcher, 4, time.Minute)

	for _, input := range []string{"Design Trends", "design trends "} {
		resp, err := tool.Invoke(context.Background(), agent.ToolRequest{Input: input, Arguments: map[string]any{"input": input}})
		if err != nil {
			t.Fatalf("Invoke returned error: %v", err)
		}
		if resp.Content != "trend digest" {
			t.Fatalf("content = %q", resp.Content)
		}
	}
	if searcher.calls != 1 {
		t.Fatalf("expected one upstream search, got %d", searcher.calls)
	}
}

func TestWebSearchToolUsesQueryArgument(t *testing.T) {
	searcher := &stubSearcher{result: "x"}
	tool := NewWebSearchTool(searcher, 0, 0)
	resp, _ := tool.Invoke(context.Background(), agent.ToolRequest{Input: `{"query":"banking"}`, Arguments: map[string]any{"query": "banking"}})
	if resp.Content != "x" {
		t.Fatalf("content = %q", resp.Content)
	}
}

func TestWebSearchToolFailuresBecomeObservations(t *testing.T) {
	tool := NewWebSearchTool(&stubSearcher{err: errors.New("offline")}, 4, time.Minute)
	resp, err := tool.Invoke(context.Background(), agent.ToolRequest{Input: "q"})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if resp.Content != "Error: search failed: offline" {
		t.Fatalf("content = %q", resp.Content)
	}

	empty := NewWebSearchTool(&stubSearcher{}, 4, time.Minute)
	resp, _ = empty.Invoke(context.Background(), agent.ToolRequest{Input: "q"})
	if resp.Content != noResultsMessage {
		t.Fatalf("content = %q", resp.Content)
	}
	resp, _ = empty.Invoke(context.Background(), agent.ToolRequest{Input: "  "})
	if resp.Content != "Error: search query is empty" {
		t.Fatalf("content = %q", resp.Content)
	}
}
