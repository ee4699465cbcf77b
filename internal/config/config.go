package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harun/fsdispatch/internal/logger"
	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/llm"
)

// ConfigFileName is the config file looked up inside the data directory.
const ConfigFileName = "fsdispatch.json"

// ErrMissingCredential is returned when no API key is configured for the
// selected provider.
var ErrMissingCredential = errors.New("missing provider credential")

// Config represents the fsdispatch configuration
type Config struct {
	// Base directory holding inbox, outbox, config, prompts and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// LLM provider
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Router loop
	Router RouterConfig `json:"router" mapstructure:"router"`

	// Agent worker loops
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Agents started by `up`; empty means every agent in the dispatch table
	Agents []string `json:"agents" mapstructure:"agents"`

	// Activity log
	ActivityLog ActivityLogConfig `json:"activity_log" mapstructure:"activity_log"`

	// Process logging
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// ProviderConfig selects the LLM capability
type ProviderConfig struct {
	Name   string `json:"name" mapstructure:"name"` // anthropic, openai
	APIKey string `json:"-" mapstructure:"api_key"`
}

// RouterConfig holds router loop settings
type RouterConfig struct {
	PollInterval        time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	Schedule            string        `json:"schedule" mapstructure:"schedule"`
	ClassifierModel     string        `json:"classifier_model" mapstructure:"classifier_model"`
	ClassifierMaxTokens int           `json:"classifier_max_tokens" mapstructure:"classifier_max_tokens"`
	FallbackIntent      string        `json:"fallback_intent" mapstructure:"fallback_intent"`
	DefaultAgent        string        `json:"default_agent" mapstructure:"default_agent"`
	Watch               bool          `json:"watch" mapstructure:"watch"`

	// Prompt descriptions for intents, keyed by intent; built-in intents
	// fall back to their stock description
	IntentDescriptions map[string]string `json:"intent_descriptions,omitempty" mapstructure:"intent_descriptions"`
}

// AgentConfig holds agent worker loop settings
type AgentConfig struct {
	PollInterval time.Duration `json:"poll_interval" mapstructure:"poll_interval"`
	MaxTokens    int           `json:"max_tokens" mapstructure:"max_tokens"`
	Watch        bool          `json:"watch" mapstructure:"watch"`
}

// ActivityLogConfig holds activity log settings
type ActivityLogConfig struct {
	Format string `json:"format" mapstructure:"format"` // text, json
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"` // empty disables the endpoint
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	logging := logger.DefaultConfig()
	logging.MaxSize = 0

	return &Config{
		DataDir: ".",
		Provider: ProviderConfig{
			Name: llm.ProviderAnthropic,
		},
		Router: RouterConfig{
			PollInterval:        2 * time.Second,
			ClassifierModel:     dispatch.ModelSonnet,
			ClassifierMaxTokens: 50,
			FallbackIntent:      string(dispatch.DefaultFallbackIntent),
			DefaultAgent:        dispatch.DefaultAgent,
			Watch:               true,
		},
		Agent: AgentConfig{
			PollInterval: 2 * time.Second,
			MaxTokens:    4000,
			Watch:        true,
		},
		ActivityLog: ActivityLogConfig{
			Format: string(activity.FormatText),
		},
		Logging: logging,
	}
}

// Path returns the default config file location for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, ConfigFileName)
}

// String returns a JSON representation of the config. The credential is
// never included.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RequireCredential fails when the selected provider has no API key.
func (c *Config) RequireCredential() error {
	if c.Provider.APIKey == "" {
		return fmt.Errorf("%w: set %s or provider.api_key", ErrMissingCredential, llm.CredentialEnv(c.Provider.Name))
	}
	return nil
}
