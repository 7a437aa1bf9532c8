package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Protocol-Lattice/design-team/src/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Agent   AgentConfig   `yaml:"agent"`
	Staging StagingConfig `yaml:"staging"`
	Search  SearchConfig  `yaml:"search"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	Mode       string        `yaml:"mode"` // debug, release
	SessionTTL time.Duration `yaml:"session_ttl"`
	// MaxUploadMB bounds a multipart analyze request.
	MaxUploadMB  int64    `yaml:"max_upload_mb"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"` // gemini, openai, anthropic, ollama, dummy
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature *float32 `yaml:"temperature"` // unset uses the provider default
	MaxTokens   int     `yaml:"max_tokens"`
	Host        string  `yaml:"host"`
	// RateInterval spaces model calls; zero disables limiting.
	RateInterval time.Duration `yaml:"rate_interval"`
	RateBurst    int           `yaml:"rate_burst"`
}

type AgentConfig struct {
	MaxIterations       int  `yaml:"max_iterations"`
	HandleParsingErrors bool `yaml:"handle_parsing_errors"`
}

type StagingConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

type SearchConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	MaxResults int           `yaml:"max_results"`
	CacheSize  int           `yaml:"cache_size"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Mode:         "release",
			SessionTTL:   30 * time.Minute,
			MaxUploadMB:  32,
			AllowOrigins: []string{"*"},
		},
		Model: ModelConfig{
			Provider:    models.DefaultProvider,
			// Name stays empty so the chosen provider supplies its default.
			Temperature: models.Float32(models.DefaultTemperature),
			RateBurst:   1,
		},
		Agent: AgentConfig{
			MaxIterations: 15,
		},
		Staging: StagingConfig{
			Prefix: "temp_",
		},
		Search: SearchConfig{
			Endpoint:   "https://api.duckduckgo.com/",
			MaxResults: 5,
			CacheSize:  128,
			CacheTTL:   10 * time.Minute,
		},
	}
}

// Load layers the YAML file at path (or CONFIG_PATH, or ./config.yaml) over
// the defaults, then applies environment overrides. A missing file is not an
// error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the environment win over the file.
func (c *Config) applyEnv() {
	if v := firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY"); v != "" {
		c.Model.APIKey = v
	}
	if v := firstEnv("DESIGN_TEAM_PROVIDER"); v != "" {
		c.Model.Provider = v
		if firstEnv("DESIGN_TEAM_MODEL") == "" && !strings.EqualFold(v, models.DefaultProvider) {
			c.Model.Name = ""
		}
	}
	if v := firstEnv("DESIGN_TEAM_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := firstEnv("DESIGN_TEAM_STAGING_DIR"); v != "" {
		c.Staging.Dir = v
	}
	if v := firstEnv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// LLM converts the model section into a provider configuration. An empty
// model name lets the provider pick its default.
func (c *Config) LLM() models.Config {
	return models.Config{
		Provider:    c.Model.Provider,
		Model:       c.Model.Name,
		APIKey:      c.Model.APIKey,
		Temperature: temperatureCopy(c.Model.Temperature),
		MaxTokens:   c.Model.MaxTokens,
		Host:        c.Model.Host,
	}
}

func temperatureCopy(t *float32) *float32 {
	if t == nil {
		return nil
	}
	return models.Float32(*t)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
