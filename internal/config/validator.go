package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/llm"
	"github.com/harun/fsdispatch/pkg/poller"
)

// identifierPattern matches agent ids and intent labels.
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProvider validates the provider name
func (v *Validator) ValidateProvider(name string) error {
	switch name {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
		return nil
	}
	return fmt.Errorf("invalid provider: %s (must be one of: %s, %s)", name, llm.ProviderAnthropic, llm.ProviderOpenAI)
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return nil // resolved and enforced at start-up
	}

	switch provider {
	case llm.ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case llm.ProviderOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateAgentID validates an agent identifier
func (v *Validator) ValidateAgentID(id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid agent id: %q (lowercase letters, digits, '-' and '_')", id)
	}
	return nil
}

// ValidateMaxTokens validates max tokens value
func (v *Validator) ValidateMaxTokens(tokens int) error {
	if tokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", tokens)
	}
	if tokens > 200000 {
		return fmt.Errorf("max tokens too large (max 200000), got %d", tokens)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	if _, err := zerolog.ParseLevel(level); err != nil || level == "" {
		return fmt.Errorf("invalid log level: %q", level)
	}
	return nil
}

// ValidateActivityFormat validates the activity log format
func (v *Validator) ValidateActivityFormat(format string) error {
	switch activity.Format(format) {
	case activity.FormatText, activity.FormatJSON:
		return nil
	}
	return fmt.Errorf("invalid activity log format: %s (must be one of: text, json)", format)
}

// ValidateCadence validates a loop's poll interval and optional schedule
func (v *Validator) ValidateCadence(loop string, interval time.Duration, schedule string) error {
	if schedule == "" && interval <= 0 {
		return fmt.Errorf("%s.poll_interval must be positive", loop)
	}
	if schedule != "" {
		if _, err := poller.ParseSchedule(poller.Options{Schedule: schedule}); err != nil {
			return fmt.Errorf("%s.schedule: %w", loop, err)
		}
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if strings.TrimSpace(cfg.DataDir) == "" {
		errors = append(errors, fmt.Errorf("data_dir is required"))
	}

	if err := v.ValidateProvider(cfg.Provider.Name); err != nil {
		errors = append(errors, err)
	} else if err := v.ValidateAPIKey(cfg.Provider.APIKey, cfg.Provider.Name); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateCadence("router", cfg.Router.PollInterval, cfg.Router.Schedule); err != nil {
		errors = append(errors, err)
	}
	if strings.TrimSpace(cfg.Router.ClassifierModel) == "" {
		errors = append(errors, fmt.Errorf("router.classifier_model is required"))
	}
	if err := v.ValidateMaxTokens(cfg.Router.ClassifierMaxTokens); err != nil {
		errors = append(errors, fmt.Errorf("router.classifier_max_tokens: %w", err))
	}
	if !identifierPattern.MatchString(cfg.Router.FallbackIntent) {
		errors = append(errors, fmt.Errorf("router.fallback_intent: invalid intent %q", cfg.Router.FallbackIntent))
	}
	if err := v.ValidateAgentID(cfg.Router.DefaultAgent); err != nil {
		errors = append(errors, fmt.Errorf("router.default_agent: %w", err))
	}
	for intent, desc := range cfg.Router.IntentDescriptions {
		if !identifierPattern.MatchString(intent) {
			errors = append(errors, fmt.Errorf("router.intent_descriptions: invalid intent %q", intent))
		} else if strings.TrimSpace(desc) == "" {
			errors = append(errors, fmt.Errorf("router.intent_descriptions.%s: description is empty", intent))
		}
	}

	if err := v.ValidateCadence("agent", cfg.Agent.PollInterval, ""); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMaxTokens(cfg.Agent.MaxTokens); err != nil {
		errors = append(errors, fmt.Errorf("agent.max_tokens: %w", err))
	}

	for i, id := range cfg.Agents {
		if err := v.ValidateAgentID(id); err != nil {
			errors = append(errors, fmt.Errorf("agents[%d]: %w", i, err))
		}
	}

	if err := v.ValidateActivityFormat(cfg.ActivityLog.Format); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if cfg.Logging.MaxSize < 0 {
		errors = append(errors, fmt.Errorf("logging.max_size must be >= 0"))
	}

	return errors
}
