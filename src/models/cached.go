package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Protocol-Lattice/design-team/src/cache"
	"k8s.io/klog/v2"
)

// CachedLLM wraps an Agent and memoises Generate results by prompt hash.
type CachedLLM struct {
	Agent    Agent
	Cache    *cache.LRU[string]
	FilePath string

	persistMu sync.Mutex
}

// NewCachedLLM creates a new CachedLLM wrapper. When filePath is set the
// cache is loaded from and saved to that JSON file.
func NewCachedLLM(agent Agent, size int, ttl time.Duration, filePath string) *CachedLLM {
	c := &CachedLLM{
		Agent:    agent,
		Cache:    cache.New[string](size, ttl),
		FilePath: filePath,
	}
	if filePath != "" {
		c.load()
	}
	return c
}

func (c *CachedLLM) load() {
	data, err := os.ReadFile(c.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		var dump map[string]cache.Entry[string]
		if err = json.Unmarshal(data, &dump); err == nil {
			c.Cache.Restore(dump)
			return
		}
	}
	klog.Warningf("llm cache %s: starting empty: %v", c.FilePath, err)
}

// persist replaces the cache file through a rename so readers never see a
// partial dump. Each write gets its own temp file, so wrappers sharing a
// path cannot clobber one another mid-write.
func (c *CachedLLM) persist() {
	if c.FilePath == "" {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	data, err := json.Marshal(c.Cache.Dump())
	if err == nil {
		err = writeFileAtomic(c.FilePath, data)
	}
	if err != nil {
		klog.Warningf("llm cache %s: %v", c.FilePath, err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
	}
	return err
}

// Generate answers repeated prompts from the cache. Results are stored as
// text, so callers always receive a string.
func (c *CachedLLM) Generate(ctx context.Context, prompt string) (any, error) {
	key := cache.HashKey(prompt)
	if hit, found := c.Cache.Get(key); found {
		klog.V(5).Infof("llm cache hit %s", key[:12])
		return hit, nil
	}

	res, genErr := c.Agent.Generate(ctx, prompt)
	if genErr != nil {
		return nil, genErr
	}

	text := fmt.Sprint(res)
	if s, ok := res.(string); ok {
		text = s
	}
	c.Cache.Set(key, text)
	c.persist()
	return text, nil
}

// Verify delegates to the wrapped connection when it supports verification.
func (c *CachedLLM) Verify(ctx context.Context) error {
	if v, ok := c.Agent.(Verifier); ok {
		return v.Verify(ctx)
	}
	return nil
}

// Close closes the wrapped connection when it holds resources.
func (c *CachedLLM) Close() error {
	if cl, ok := c.Agent.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// TryCreateCachedLLM wraps the agent when AGENT_LLM_CACHE_SIZE is set.
// AGENT_LLM_CACHE_TTL (seconds) and AGENT_LLM_CACHE_PATH tune it.
func TryCreateCachedLLM(agent Agent) Agent {
	size, err := strconv.Atoi(os.Getenv("AGENT_LLM_CACHE_SIZE"))
	if err != nil || size <= 0 {
		return agent
	}

	ttl := 300 * time.Second
	if sec, err := strconv.Atoi(os.Getenv("AGENT_LLM_CACHE_TTL")); err == nil && sec > 0 {
		ttl = time.Duration(sec) * time.Second
	}

	return NewCachedLLM(agent, size, ttl, os.Getenv("AGENT_LLM_CACHE_PATH"))
}
