package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

// Default provider settings, matching a local Ollama server.
const (
	DefaultProvider = "ollama"
	DefaultModel    = "qwen3-coder:480b-cloud"
	DefaultBaseURL  = "http://localhost:11434/v1"
	DefaultAPIKey   = "ollama"
)

type Config struct {
	App        AppConfig                 `json:"app"`
	Browser    BrowserConfig             `json:"browser"`
	Runner     RunnerConfig              `json:"runner"`
	Gateways   map[string]GatewayConfig  `json:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Memory     MemoryConfig              `json:"memory"`
	Guardrails GuardrailsConfig          `json:"guardrails"`
}

type AppConfig struct {
	Name       string `json:"name"`
	ReportsDir string `json:"reports_dir"`
	PromptsDir string `json:"prompts_dir,omitempty"`
	LLMLog     string `json:"llm_log"`
}

type BrowserConfig struct {
	Headful        bool     `json:"headful"`
	ViewportWidth  int      `json:"viewport_width"`
	ViewportHeight int      `json:"viewport_height"`
	ActionTimeout  Duration `json:"action_timeout"`
	UserAgent      string   `json:"user_agent,omitempty"`
	TextLimit      int      `json:"text_limit"`
}

type RunnerConfig struct {
	RetryDelay  Duration `json:"retry_delay"`
	MaxActSteps int      `json:"max_act_steps"`
	Timeout     Duration `json:"timeout"`
}

type GatewayConfig struct {
	Token     string `json:"token"`
	ChatID    string `json:"chat_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Enabled   bool   `json:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Enabled bool   `json:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type GuardrailsConfig struct {
	// Deny lists extra regular expressions blocking page actions.
	Deny []string `json:"deny,omitempty"`
	// NoDefaults drops the built-in add-to-cart and checkout patterns.
	NoDefaults bool `json:"no_defaults,omitempty"`
}

// Duration decodes from a Go duration string ("1.5s") or a number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(x * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:       "shopcheck",
			ReportsDir: "reports",
			LLMLog:     "logs/llm.jsonl",
		},
		Browser: BrowserConfig{
			ViewportWidth:  1280,
			ViewportHeight: 720,
			ActionTimeout:  Duration(60 * time.Second),
			TextLimit:      50000,
		},
		Runner: RunnerConfig{
			RetryDelay:  Duration(1500 * time.Millisecond),
			MaxActSteps: 3,
			Timeout:     Duration(240 * time.Second),
		},
		Gateways: map[string]GatewayConfig{},
		Providers: map[string]ProviderConfig{
			DefaultProvider: {
				APIKey:  DefaultAPIKey,
				Model:   DefaultModel,
				BaseURL: DefaultBaseURL,
				Enabled: true,
			},
		},
		Memory: MemoryConfig{Type: "sqlite", Path: "shopcheck.db"},
	}
}

// LoadConfig reads .env (if any) and the JSON file at path over the
// defaults. A missing file is not an error. Environment variables
// OLLAMA_API_KEY, OLLAMA_API_BASE and SHOPCHECK_MODEL override the
// ollama provider.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer file.Close()
			defaults := cfg.Providers
			cfg.Providers = nil
			decoder := json.NewDecoder(file)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
			// The built-in provider only applies when the file names none.
			if len(cfg.Providers) == 0 {
				cfg.Providers = defaults
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	p, ok := c.Providers[DefaultProvider]
	if !ok {
		return
	}
	if v := os.Getenv("OLLAMA_API_KEY"); v != "" {
		p.APIKey = v
	}
	if v := os.Getenv("OLLAMA_API_BASE"); v != "" {
		p.BaseURL = v
	}
	if v := os.Getenv("SHOPCHECK_MODEL"); v != "" {
		p.Model = v
	}
	c.Providers[DefaultProvider] = p
}

// GetDefaultProvider returns the first enabled provider by name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGatewayConfig returns the named gateway config if enabled
func (c *Config) GetGatewayConfig(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled {
		return gw, true
	}
	return GatewayConfig{}, false
}
