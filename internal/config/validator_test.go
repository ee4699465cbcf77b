package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("anthropic"))
	assert.NoError(t, v.ValidateProvider("openai"))
	assert.Error(t, v.ValidateProvider(""))
	assert.Error(t, v.ValidateProvider("gemini"))
}

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name     string
		key      string
		provider string
		wantErr  bool
	}{
		{"empty key is resolved later", "", "anthropic", false},
		{"valid anthropic key", "sk-ant-api03-test", "anthropic", false},
		{"invalid anthropic key", "sk-test", "anthropic", true},
		{"valid openai key", "sk-proj-test", "openai", false},
		{"invalid openai key", "test-key", "openai", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAgentID(t *testing.T) {
	v := NewValidator()

	for _, id := range []string{"planner", "ui_designer", "agent-2"} {
		assert.NoError(t, v.ValidateAgentID(id), id)
	}
	for _, id := range []string{"", "Planner", "-x", "../etc", "a b"} {
		assert.Error(t, v.ValidateAgentID(id), id)
	}
}

func TestValidateMaxTokens(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMaxTokens(4000))
	assert.Error(t, v.ValidateMaxTokens(0))
	assert.Error(t, v.ValidateMaxTokens(-1))
	assert.Error(t, v.ValidateMaxTokens(300000))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel(""))
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateCadence(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateCadence("router", 100*time.Millisecond, ""))
	assert.NoError(t, v.ValidateCadence("router", 0, "@every 1s"))
	assert.Error(t, v.ValidateCadence("router", 0, ""))
	assert.Error(t, v.ValidateCadence("router", time.Second, "not a schedule"))
}

func TestValidateConfigCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Name = "gemini"
	cfg.Agent.MaxTokens = 0
	cfg.Logging.Level = "loud"

	errs := NewValidator().ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}

func TestValidateConfigIntentDescriptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Router.IntentDescriptions = map[string]string{"deploy": "User wants a release shipped"}
	assert.Empty(t, NewValidator().ValidateConfig(cfg))

	cfg.Router.IntentDescriptions = map[string]string{"Deploy Now": "x"}
	assert.Len(t, NewValidator().ValidateConfig(cfg), 1)

	cfg.Router.IntentDescriptions = map[string]string{"deploy": "  "}
	assert.Len(t, NewValidator().ValidateConfig(cfg), 1)
}
