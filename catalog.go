package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrDuplicateTool is returned when two tools share a name, ignoring case.
var ErrDuplicateTool = errors.New("duplicate tool name")

type catalogEntry struct {
	tool Tool
	spec ToolSpec
}

// StaticToolCatalog is the default in-memory ToolCatalog. Names match
// case-insensitively and prompt rendering follows registration order.
type StaticToolCatalog struct {
	mu      sync.RWMutex
	entries []catalogEntry
	index   map[string]int
}

// NewStaticToolCatalog builds a catalog from tools, silently dropping nil,
// unnamed and duplicate entries.
func NewStaticToolCatalog(tools []Tool) *StaticToolCatalog {
	c := &StaticToolCatalog{index: map[string]int{}}
	for _, tool := range tools {
		_ = c.Register(tool)
	}
	return c
}

func (c *StaticToolCatalog) Register(tool Tool) error {
	if tool == nil {
		return errors.New("cannot register a nil tool")
	}
	spec := tool.Spec()
	key := toolKey(spec.Name)
	if key == "" {
		return errors.New("cannot register a tool without a name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, taken := c.index[key]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, catalogEntry{tool: tool, spec: spec})
	return nil
}

func (c *StaticToolCatalog) Lookup(name string) (Tool, ToolSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[toolKey(name)]
	if !ok {
		return nil, ToolSpec{}, false
	}
	e := c.entries[i]
	return e.tool, e.spec, true
}

func (c *StaticToolCatalog) Specs() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolSpec, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.spec
	}
	return out
}

func (c *StaticToolCatalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Tool, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.tool
	}
	return out
}

// Names lists tool names as registered.
func (c *StaticToolCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.spec.Name
	}
	return out
}

func toolKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
