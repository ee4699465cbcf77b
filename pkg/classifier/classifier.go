// Package classifier assigns one intent from a closed enumeration to a
// message using the external language-model capability. It never fails:
// provider errors and out-of-enumeration answers yield the fallback intent.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/llm"
	"github.com/rs/zerolog"
)

// Fallback reasons
const (
	ReasonProviderError = "provider_error"
	ReasonUnknownLabel  = "unknown_label"
)

// DefaultMaxTokens is the output budget of a classification call.
const DefaultMaxTokens = 50

// Config configures a Classifier
type Config struct {
	Model     string
	MaxTokens int
	Intents   []dispatch.Intent
	Fallback  dispatch.Intent

	// Descriptions override the built-in intent descriptions in the prompt.
	Descriptions map[dispatch.Intent]string
	Logger       zerolog.Logger
}

// Result is the outcome of a classification.
type Result struct {
	Intent   dispatch.Intent
	FellBack bool
	Reason   string
	Raw      string
	Err      error
}

// Classifier labels messages with an intent.
type Classifier struct {
	provider llm.Provider
	model    string
	tokens   int
	intents  []dispatch.Intent
	allowed  map[dispatch.Intent]bool
	fallback dispatch.Intent
	descs    map[dispatch.Intent]string
	logger   zerolog.Logger
}

// New creates a Classifier.
func New(provider llm.Provider, cfg Config) *Classifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	intents := dispatch.SortIntents(append([]dispatch.Intent(nil), cfg.Intents...))
	allowed := make(map[dispatch.Intent]bool, len(intents))
	for _, intent := range intents {
		allowed[intent] = true
	}

	return &Classifier{
		provider: provider,
		model:    cfg.Model,
		tokens:   cfg.MaxTokens,
		intents:  intents,
		allowed:  allowed,
		fallback: cfg.Fallback,
		descs:    cfg.Descriptions,
		logger:   cfg.Logger.With().Str("component", "classifier").Logger(),
	}
}

// Prompt renders the classification instruction for message.
func (c *Classifier) Prompt(message string) string {
	var b strings.Builder
	b.WriteString("You are a message classifier for a multi-agent AI development framework.\n\n")
	b.WriteString("Analyze the following user message and classify it into ONE of these categories:\n")
	for _, intent := range c.intents {
		desc := c.descs[intent]
		if desc == "" {
			desc = intent.Description()
		}
		if desc != "" {
			fmt.Fprintf(&b, "- %s: %s\n", intent, desc)
		} else {
			fmt.Fprintf(&b, "- %s\n", intent)
		}
	}
	fmt.Fprintf(&b, "\nUser message: \"%s\"\n\n", message)
	fmt.Fprintf(&b, "Respond with ONLY the category name (e.g., %q).\n", c.example())
	return b.String()
}

func (c *Classifier) example() dispatch.Intent {
	if c.allowed[dispatch.IntentFeatureRequest] || len(c.intents) == 0 {
		return dispatch.IntentFeatureRequest
	}
	return c.intents[0]
}

// Classify returns the intent of message. It makes exactly one provider call.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	resp, err := c.provider.Call(ctx, llm.Request{
		Model:     c.model,
		Prompt:    c.Prompt(message),
		MaxTokens: c.tokens,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("fallback", string(c.fallback)).Msg("Classification failed, using fallback intent")
		return Result{Intent: c.fallback, FellBack: true, Reason: ReasonProviderError, Err: err}
	}

	label := Normalize(resp.Content)
	if !c.allowed[label] {
		c.logger.Warn().
			Str("label", resp.Content).
			Str("fallback", string(c.fallback)).
			Msg("Classifier returned unknown label, using fallback intent")
		return Result{Intent: c.fallback, FellBack: true, Reason: ReasonUnknownLabel, Raw: resp.Content}
	}

	return Result{Intent: label, Raw: resp.Content}
}

// Normalize turns a raw model reply into a candidate label: surrounding
// whitespace, quotes and backticks are removed and the result is lower-cased.
func Normalize(raw string) dispatch.Intent {
	label := strings.TrimSpace(raw)
	label = strings.Trim(label, "\"'`")
	return dispatch.Intent(strings.ToLower(strings.TrimSpace(label)))
}
