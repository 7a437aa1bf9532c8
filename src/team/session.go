package team

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"

	agent "github.com/Protocol-Lattice/design-team"
	"github.com/Protocol-Lattice/design-team/src/models"
	"github.com/Protocol-Lattice/design-team/src/staging"
	"github.com/Protocol-Lattice/design-team/src/tools"
	"k8s.io/klog/v2"
)

// ModelFactory opens the model connection shared by a session's profiles.
type ModelFactory func(ctx context.Context, credential string) (models.Agent, error)

// ProviderFactory builds connections through models.NewLLMProvider. The
// credential overrides cfg.APIKey. A positive interval rate-limits calls,
// and AGENT_LLM_CACHE_SIZE enables prompt caching.
func ProviderFactory(cfg models.Config, interval time.Duration, burst int) ModelFactory {
	return func(ctx context.Context, credential string) (models.Agent, error) {
		cfg.APIKey = credential
		conn, err := models.NewLLMProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if interval > 0 {
			conn = models.NewRateLimitedLLM(conn, interval, burst)
		}
		return models.TryCreateCachedLLM(conn), nil
	}
}

type sessionOptions struct {
	modelFactory   ModelFactory
	imageTool      agent.Tool
	searchTool     agent.Tool
	searcher       tools.Searcher
	stager         *staging.Stager
	maxIterations  int
	handleParsing  bool
	searchCache    int
	searchCacheTTL time.Duration
	verify         bool
}

// Option customizes NewSession.
type Option func(*sessionOptions)

func WithModelFactory(f ModelFactory) Option {
	return func(o *sessionOptions) { o.modelFactory = f }
}

// WithImageTool replaces the image_analysis tool, e.g. with a real vision
// backend.
func WithImageTool(t agent.Tool) Option {
	return func(o *sessionOptions) { o.imageTool = t }
}

// WithSearcher sets the backend of the duckduckgo_search tool.
func WithSearcher(s tools.Searcher) Option {
	return func(o *sessionOptions) { o.searcher = s }
}

func WithSearchCache(size int, ttl time.Duration) Option {
	return func(o *sessionOptions) {
		o.searchCache = size
		o.searchCacheTTL = ttl
	}
}

func WithStager(s *staging.Stager) Option {
	return func(o *sessionOptions) { o.stager = s }
}

func WithMaxIterations(n int) Option {
	return func(o *sessionOptions) { o.maxIterations = n }
}

func WithHandleParsingErrors(enabled bool) Option {
	return func(o *sessionOptions) { o.handleParsing = enabled }
}

// WithVerify toggles the credential probe made during initialization.
func WithVerify(enabled bool) Option {
	return func(o *sessionOptions) { o.verify = enabled }
}

// Session owns one model connection and the three profiles built on it.
// Dispatches on a session are serialized.
type Session struct {
	mu       sync.Mutex
	conn     models.Agent
	profiles map[AnalysisType]*Profile
	stager   *staging.Stager
	closed   bool
}

// NewSession validates the credential, opens the connection and builds every
// profile. Any failure yields an *InitializationError and no session.
func NewSession(ctx context.Context, credential string, opts ...Option) (*Session, error) {
	o := sessionOptions{
		modelFactory:   ProviderFactory(models.Config{}, 0, 0),
		searchCache:    128,
		searchCacheTTL: 10 * time.Minute,
		verify:         true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateCredential(credential); err != nil {
		klog.Errorf("session init: %v", err)
		return nil, &InitializationError{Err: err}
	}

	conn, err := o.modelFactory(ctx, credential)
	if err != nil {
		klog.Errorf("session init: connect: %v", err)
		return nil, &InitializationError{Err: err}
	}
	if conn == nil {
		return nil, &InitializationError{Err: errors.New("model factory returned no connection")}
	}

	sess, err := buildSession(ctx, conn, o)
	if err != nil {
		closeConn(conn)
		klog.Errorf("session init: %v", err)
		return nil, &InitializationError{Err: err}
	}
	klog.V(2).Infof("session ready with %d profiles", len(sess.profiles))
	return sess, nil
}

func buildSession(ctx context.Context, conn models.Agent, o sessionOptions) (*Session, error) {
	if v, ok := conn.(models.Verifier); ok && o.verify {
		if err := v.Verify(ctx); err != nil {
			return nil, err
		}
	}

	imageTool := o.imageTool
	if imageTool == nil {
		imageTool = tools.NewImageAnalysisTool()
	}
	searchTool := o.searchTool
	if searchTool == nil {
		searchTool = tools.NewWebSearchTool(o.searcher, o.searchCache, o.searchCacheTTL)
	}

	profiles := make(map[AnalysisType]*Profile, len(AnalysisTypes))
	for _, cfg := range DefaultProfileConfigs(imageTool, searchTool) {
		cfg.MaxIterations = o.maxIterations
		cfg.HandleParsingErrors = o.handleParsing
		p, err := NewProfile(conn, cfg)
		if err != nil {
			return nil, err
		}
		profiles[cfg.Type] = p
	}

	stager := o.stager
	if stager == nil {
		stager = staging.NewStager("")
	}
	return &Session{conn: conn, profiles: profiles, stager: stager}, nil
}

func validateCredential(credential string) error {
	switch {
	case credential == "":
		return errors.New("API key is empty")
	case strings.ContainsFunc(credential, unicode.IsSpace):
		return errors.New("API key must not contain whitespace")
	}
	return nil
}

func closeConn(conn models.Agent) {
	if c, ok := conn.(io.Closer); ok {
		if err := c.Close(); err != nil {
			klog.Warningf("close model connection: %v", err)
		}
	}
}

// Profile returns the profile serving t.
func (s *Session) Profile(t AnalysisType) (*Profile, bool) {
	p, ok := s.profiles[t]
	return p, ok
}

// Profiles returns the profiles in dispatch order.
func (s *Session) Profiles() []*Profile {
	out := make([]*Profile, 0, len(s.profiles))
	for _, t := range AnalysisTypes {
		if p, ok := s.profiles[t]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Close releases the model connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.conn.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close model connection: %w", err)
		}
	}
	return nil
}
