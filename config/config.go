// Package config loads the sleuth CLI configuration from a YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/misc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRetryBudget     = 23
	DefaultMaxTokens       = 1000
	DefaultTemperature     = 0.10
	DefaultSearchResults   = 4
	DefaultFetchTimeout    = 15 * time.Second
	DefaultToolTimeout     = 30 * time.Second
	DefaultDecider         = "openai"
	DefaultSearch          = "bing"
	DefaultAzureAPIVersion = "2024-10-21"
	DefaultServiceName     = "sleuth"
	DefaultSampleRate      = 1.0
)

// Config is the complete CLI configuration.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Decider   DeciderConfig   `yaml:"decider"`
	Search    SearchConfig    `yaml:"search"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Debug     bool            `yaml:"debug"`
}

// AgentConfig holds run limits.
type AgentConfig struct {
	RetryBudget   int           `yaml:"retryBudget"`
	ToolTimeout   time.Duration `yaml:"toolTimeout"`
	FetchTimeout  time.Duration `yaml:"fetchTimeout"`
	SearchResults int           `yaml:"searchResults"`
	// SearchFirst forces a web search before the model may answer.
	SearchFirst bool `yaml:"searchFirst"`
}

// DeciderConfig selects and configures the decision-making model.
type DeciderConfig struct {
	Type        string         `yaml:"type"` // "openai" (default), "azure", "anthropic", or "prompt"
	Model       string         `yaml:"model,omitempty"`
	MaxTokens   int            `yaml:"maxTokens"`
	Temperature float64        `yaml:"temperature"`
	OpenAI      ProviderConfig `yaml:"openai"`
	Azure       AzureConfig    `yaml:"azure"`
	Anthropic   ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig is an API key and optional base URL.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// AzureConfig configures Azure OpenAI.
type AzureConfig struct {
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"apiKey,omitempty"`
	Deployment string `yaml:"deployment,omitempty"`
	APIVersion string `yaml:"apiVersion,omitempty"`
}

// SearchConfig selects and configures the search provider.
type SearchConfig struct {
	Provider     string `yaml:"provider"` // "bing" (default), "brave", "tavily", or "duckduckgo"
	BingKey      string `yaml:"bingKey,omitempty"`
	BingEndpoint string `yaml:"bingEndpoint,omitempty"`
	BraveKey     string `yaml:"braveKey,omitempty"`
	TavilyKey    string `yaml:"tavilyKey,omitempty"`
	TavilyDepth  string `yaml:"tavilyDepth,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint,omitempty"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	ServiceName string            `yaml:"serviceName"`
	SampleRate  float64           `yaml:"sampleRate"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			RetryBudget:   DefaultRetryBudget,
			ToolTimeout:   DefaultToolTimeout,
			FetchTimeout:  DefaultFetchTimeout,
			SearchResults: DefaultSearchResults,
		},
		Decider: DeciderConfig{
			Type:        DefaultDecider,
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
			Azure:       AzureConfig{APIVersion: DefaultAzureAPIVersion},
		},
		Search: SearchConfig{
			Provider:    DefaultSearch,
			TavilyDepth: "basic",
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
			SampleRate:  DefaultSampleRate,
		},
	}
}

// Dir returns the configuration directory, ~/.sleuth.
func Dir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".sleuth")
}

// Path returns the default configuration file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads path (Path() when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Decider.OpenAI.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		cfg.Decider.OpenAI.BaseURL = url
	}
	if model := os.Getenv("OPENAI_MODEL_ID"); model != "" && cfg.Decider.Type == "openai" {
		cfg.Decider.Model = model
	}
	if endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		cfg.Decider.Azure.Endpoint = endpoint
	}
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		cfg.Decider.Azure.APIKey = key
	}
	if model := os.Getenv("AZURE_OPENAI_MODEL_ID"); model != "" {
		cfg.Decider.Azure.Deployment = model
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Decider.Anthropic.APIKey = key
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" {
		cfg.Decider.Anthropic.BaseURL = url
	}
	if key := os.Getenv("BING_SEARCH_KEY"); key != "" {
		cfg.Search.BingKey = key
	}
	if endpoint := os.Getenv("BING_SEARCH_ENDPOINT"); endpoint != "" {
		cfg.Search.BingEndpoint = endpoint
	}
	if key := os.Getenv("BRAVE_API_KEY"); key != "" {
		cfg.Search.BraveKey = key
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		cfg.Search.TavilyKey = key
	}
	if raw := os.Getenv("SLEUTH_RETRY_BUDGET"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Agent.RetryBudget = n
		}
	}
	if raw := os.Getenv("SLEUTH_DEBUG"); raw != "" {
		cfg.Debug = misc.Truthy(raw)
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = endpoint
	}
}

// Validate reports configuration that cannot produce a working agent.
func (c *Config) Validate() error {
	var errs []error
	if c.Agent.RetryBudget <= 0 {
		errs = append(errs, fmt.Errorf("agent.retryBudget must be positive, got %d", c.Agent.RetryBudget))
	}
	if c.Agent.ToolTimeout < 0 || c.Agent.FetchTimeout < 0 {
		errs = append(errs, errors.New("agent timeouts must not be negative"))
	}

	switch strings.ToLower(c.Decider.Type) {
	case "openai", "prompt":
		if c.Decider.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("decider.openai.apiKey is required (or set OPENAI_API_KEY)"))
		}
	case "azure":
		if c.Decider.Azure.Endpoint == "" || c.Decider.Azure.APIKey == "" || c.Decider.Azure.Deployment == "" {
			errs = append(errs, errors.New("decider.azure needs endpoint, apiKey, and deployment (or AZURE_OPENAI_* variables)"))
		}
	case "anthropic":
		if c.Decider.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("decider.anthropic.apiKey is required (or set ANTHROPIC_API_KEY)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown decider type %q", c.Decider.Type))
	}

	switch strings.ToLower(c.Search.Provider) {
	case "bing":
		if c.Search.BingKey == "" {
			errs = append(errs, errors.New("search.bingKey is required (or set BING_SEARCH_KEY)"))
		}
	case "brave":
		if c.Search.BraveKey == "" {
			errs = append(errs, errors.New("search.braveKey is required (or set BRAVE_API_KEY)"))
		}
	case "tavily":
		if c.Search.TavilyKey == "" {
			errs = append(errs, errors.New("search.tavilyKey is required (or set TAVILY_API_KEY)"))
		}
	case "duckduckgo":
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q", c.Search.Provider))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampleRate must be within [0, 1], got %v", c.Telemetry.SampleRate))
	}
	return errors.Join(errs...)
}
