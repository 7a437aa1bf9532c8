package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Protocol-Lattice/design-team/src/config"
	"github.com/Protocol-Lattice/design-team/src/helpers"
	"github.com/Protocol-Lattice/design-team/src/server"
	"github.com/Protocol-Lattice/design-team/src/staging"
	"github.com/Protocol-Lattice/design-team/src/team"
	"github.com/Protocol-Lattice/design-team/src/tools"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)

	configPath := flag.String("config", "", "Path to config.yaml (defaults to CONFIG_PATH or ./config.yaml)")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of a one-shot analysis")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	typesFlag := flag.String("types", "", "Comma-separated analysis types (default Visual Design)")
	focusFlag := flag.String("focus", "", "Comma-separated focus elements")
	contextFlag := flag.String("context", "", "Additional context about the product or audience")
	competitorsFlag := flag.String("competitors", "", "Comma-separated competitor image paths")
	provider := flag.String("provider", "", "Model provider, overrides model.provider")
	modelName := flag.String("model", "", "Model name, overrides model.name")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout for a one-shot analysis")
	flag.Parse()
	defer klog.Flush()

	cfg, err := config.Load(*configPath)
	if err != nil {
		klog.Fatalf("load config: %v", err)
	}
	if *provider != "" {
		cfg.Model.Provider = *provider
		if *modelName == "" {
			cfg.Model.Name = ""
		}
	}
	if *modelName != "" {
		cfg.Model.Name = *modelName
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	opts := sessionOptions(cfg)

	if *serve {
		registry := team.NewRegistry(func(ctx context.Context, credential string) (*team.Session, error) {
			return team.NewSession(ctx, credential, opts...)
		}, cfg.Server.SessionTTL)
		defer registry.Close()

		klog.Infof("design team API listening on %s (provider %s)", cfg.Server.Addr, cfg.Model.Provider)
		if err := server.Setup(cfg.Server, registry).Run(cfg.Server.Addr); err != nil {
			klog.Fatalf("server: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sel := team.Selection{
		Types:         helpers.ParseCSVList(*typesFlag),
		FocusElements: helpers.ParseCSVList(*focusFlag),
		Context:       *contextFlag,
	}
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	sel.Designs, closers = openFiles(flag.Args(), closers)
	sel.Competitors, closers = openFiles(helpers.ParseCSVList(*competitorsFlag), closers)

	if code := runOnce(ctx, os.Stdout, credential(cfg), sel, opts); code != 0 {
		klog.Flush()
		os.Exit(code)
	}
}

// runOnce opens a session, dispatches the selection and prints a section per
// analysis type. It returns the process exit code.
func runOnce(ctx context.Context, w io.Writer, key string, sel team.Selection, opts []team.Option) int {
	sess, err := team.NewSession(ctx, key, opts...)
	if err != nil {
		fmt.Fprintln(w, err)
		return 1
	}
	defer sess.Close()

	report, err := sess.Run(ctx, sel)
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}
	if err != nil {
		if team.IsWarning(err) {
			return 2
		}
		fmt.Fprintln(w, err)
		return 1
	}

	failed := 0
	for _, res := range report.Results {
		fmt.Fprintf(w, "\n%s\n\n%s\n", res.Title, res.Output)
		if res.Failed() {
			failed++
		}
	}
	if failed == len(report.Results) {
		return 1
	}
	return 0
}

func sessionOptions(cfg *config.Config) []team.Option {
	ddg := tools.NewDuckDuckGo()
	if cfg.Search.Endpoint != "" {
		ddg.Endpoint = cfg.Search.Endpoint
	}
	if cfg.Search.MaxResults > 0 {
		ddg.MaxResults = cfg.Search.MaxResults
	}

	stager := staging.NewStager(cfg.Staging.Dir)
	if cfg.Staging.Prefix != "" {
		stager.Prefix = cfg.Staging.Prefix
	}

	return []team.Option{
		team.WithModelFactory(team.ProviderFactory(cfg.LLM(), cfg.Model.RateInterval, cfg.Model.RateBurst)),
		team.WithSearcher(ddg),
		team.WithSearchCache(cfg.Search.CacheSize, cfg.Search.CacheTTL),
		team.WithStager(stager),
		team.WithMaxIterations(cfg.Agent.MaxIterations),
		team.WithHandleParsingErrors(cfg.Agent.HandleParsingErrors),
	}
}

// credential returns the configured key. Local providers need none, so the
// provider name stands in for it.
func credential(cfg *config.Config) string {
	if cfg.Model.APIKey != "" {
		return cfg.Model.APIKey
	}
	switch strings.ToLower(cfg.Model.Provider) {
	case "ollama", "dummy":
		return cfg.Model.Provider
	}
	return ""
}

func openFiles(paths []string, closers []io.Closer) ([]staging.Upload, []io.Closer) {
	uploads := make([]staging.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			klog.Warningf("open %s: %v", p, err)
			uploads = append(uploads, staging.Unreadable(filepath.Base(p), err))
			continue
		}
		closers = append(closers, f)
		uploads = append(uploads, staging.Upload{Name: filepath.Base(p), Content: f})
	}
	return uploads, closers
}
