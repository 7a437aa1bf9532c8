package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	agent "github.com/Protocol-Lattice/design-team"
	"github.com/Protocol-Lattice/design-team/src/cache"
	"k8s.io/klog/v2"
)

const (
	WebSearchName = "duckduckgo_search"

	defaultDuckDuckGoEndpoint = "https://api.duckduckgo.com/"
	noResultsMessage          = "No good DuckDuckGo Search Result was found"
)

// Searcher answers a free-text query with a plain-text digest.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// DuckDuckGo queries the DuckDuckGo Instant Answer API.
type DuckDuckGo struct {
	Endpoint   string
	HTTPClient *http.Client
	MaxResults int
}

func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		Endpoint:   defaultDuckDuckGoEndpoint,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxResults: 5,
	}
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Name     string     `json:"Name"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Heading       string     `json:"Heading"`
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	Definition    string     `json:"Definition"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = defaultDuckDuckGoEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("search failed: %s", resp.Status)
	}

	var data ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return d.digest(data), nil
}

// digest joins the answer fields and related topic snippets, flattening
// grouped topics.
func (d *DuckDuckGo) digest(data ddgResponse) string {
	limit := d.MaxResults
	if limit <= 0 {
		limit = 5
	}

	var parts []string
	for _, s := range []string{data.Answer, data.AbstractText, data.Definition} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	var walk func([]ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, topic := range topics {
			if len(parts) >= limit {
				return
			}
			if len(topic.Topics) > 0 {
				walk(topic.Topics)
				continue
			}
			if text := strings.TrimSpace(topic.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	walk(data.RelatedTopics)

	if len(parts) > limit {
		parts = parts[:limit]
	}
	return strings.Join(parts, "\n")
}

// WebSearchTool exposes a Searcher to the reasoning loop and memoises
// answers per normalized query.
type WebSearchTool struct {
	searcher Searcher
	cache    *cache.LRU[string]
}

// NewWebSearchTool wraps searcher; a nil searcher uses DuckDuckGo.
func NewWebSearchTool(searcher Searcher, cacheSize int, ttl time.Duration) *WebSearchTool {
	if searcher == nil {
		searcher = NewDuckDuckGo()
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	return &WebSearchTool{searcher: searcher, cache: cache.New[string](cacheSize, ttl)}
}

func (t *WebSearchTool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        WebSearchName,
		Description: "A wrapper around DuckDuckGo Search. Useful for when you need to answer questions about current events, markets or competitors. Input should be a search query.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query.",
				},
			},
			"required": []any{"query"},
		},
	}
}

func (t *WebSearchTool) Invoke(ctx context.Context, req agent.ToolRequest) (agent.ToolResponse, error) {
	query, _ := req.Arguments["query"].(string)
	if strings.TrimSpace(query) == "" {
		query = req.Input
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return agent.ToolResponse{Content: "Error: search query is empty"}, nil
	}

	key := cache.HashKey(strings.ToLower(query))
	if hit, ok := t.cache.Get(key); ok {
		return agent.ToolResponse{Content: hit, Metadata: map[string]string{"cache": "hit"}}, nil
	}

	result, err := t.searcher.Search(ctx, query)
	if err != nil {
		klog.Warningf("web search %q failed: %v", query, err)
		return agent.ToolResponse{Content: "Error: search failed: " + err.Error()}, nil
	}
	if strings.TrimSpace(result) == "" {
		result = noResultsMessage
	}
	t.cache.Set(key, result)
	return agent.ToolResponse{Content: result}, nil
}

var (
	_ Searcher   = (*DuckDuckGo)(nil)
	_ agent.Tool = (*WebSearchTool)(nil)
)
