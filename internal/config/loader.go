package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/harun/fsdispatch/pkg/llm"
)

// EnvPrefix prefixes every environment override, e.g.
// FSDISPATCH_ROUTER_POLL_INTERVAL=500ms.
const EnvPrefix = "FSDISPATCH"

// Loader handles configuration loading
type Loader struct {
	configPath string
	dataDir    string
}

// NewLoader creates a new config loader. An empty configPath means
// <data_dir>/fsdispatch.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// WithDataDir makes dataDir take precedence over the file and environment.
func (l *Loader) WithDataDir(dataDir string) *Loader {
	l.dataDir = dataDir
	return l
}

// Load reads the config file when present, applies environment overrides
// and resolves the provider credential.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	configPath := l.GetConfigPath(v.GetString("data_dir"))
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	} else if l.configPath != "" {
		return nil, fmt.Errorf("config file %s not found", configPath)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if l.dataDir != "" {
		cfg.DataDir = l.dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = os.Getenv(llm.CredentialEnv(cfg.Provider.Name))
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath(fallbackDataDir string) string {
	if l.configPath != "" {
		return l.configPath
	}
	if l.dataDir != "" {
		return Path(l.dataDir)
	}
	if fallbackDataDir == "" {
		fallbackDataDir = "."
	}
	return Path(fallbackDataDir)
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)

	v.SetDefault("provider.name", cfg.Provider.Name)
	v.SetDefault("provider.api_key", cfg.Provider.APIKey)

	v.SetDefault("router.poll_interval", cfg.Router.PollInterval)
	v.SetDefault("router.schedule", cfg.Router.Schedule)
	v.SetDefault("router.classifier_model", cfg.Router.ClassifierModel)
	v.SetDefault("router.classifier_max_tokens", cfg.Router.ClassifierMaxTokens)
	v.SetDefault("router.fallback_intent", cfg.Router.FallbackIntent)
	v.SetDefault("router.default_agent", cfg.Router.DefaultAgent)
	v.SetDefault("router.watch", cfg.Router.Watch)

	v.SetDefault("agent.poll_interval", cfg.Agent.PollInterval)
	v.SetDefault("agent.max_tokens", cfg.Agent.MaxTokens)
	v.SetDefault("agent.watch", cfg.Agent.Watch)

	v.SetDefault("agents", cfg.Agents)
	v.SetDefault("activity_log.format", cfg.ActivityLog.Format)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.max_size", cfg.Logging.MaxSize)
	v.SetDefault("logging.max_age", cfg.Logging.MaxAge)
	v.SetDefault("logging.compress", cfg.Logging.Compress)

	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
