package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/harun/fsdispatch/internal/metrics"
	"github.com/harun/fsdispatch/internal/tracing"
	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/fingerprint"
	"github.com/harun/fsdispatch/pkg/llm"
	"github.com/harun/fsdispatch/pkg/mailbox"
	"github.com/harun/fsdispatch/pkg/poller"
)

// DefaultMaxTokens is the output budget of a generation call.
const DefaultMaxTokens = 4000

// promptSeparator sits between the persona and the envelope.
const promptSeparator = "\n\n---\n\nUser Input:\n"

// State of a worker loop.
type State int32

const (
	StateIdle State = iota
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ActivityLog receives activity records.
type ActivityLog interface {
	Append(record activity.Record) error
}

// Config holds worker dependencies
type Config struct {
	AgentID   string
	Profile   dispatch.Profile
	Provider  llm.Provider
	FS        afero.Fs
	Layout    mailbox.Layout
	Store     *fingerprint.Store
	Activity  ActivityLog
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	MaxTokens int
	Clock     func() time.Time
}

// Outcome reports what one cycle did.
type Outcome struct {
	Processed bool
	Failed    bool
	Duration  time.Duration
	Err       error

	// EnvelopeID is set when the inbox held a router envelope.
	EnvelopeID string
}

// Worker processes envelopes addressed to one agent.
type Worker struct {
	agentID   string
	profile   dispatch.Profile
	provider  llm.Provider
	fs        afero.Fs
	layout    mailbox.Layout
	store     *fingerprint.Store
	activity  ActivityLog
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	maxTokens int
	clock     func() time.Time
	state     atomic.Int32
}

// New creates a Worker
func New(cfg Config) (*Worker, error) {
	if cfg.AgentID == "" {
		return nil, errors.New("agent id is required")
	}
	if cfg.Profile.AgentID != "" && cfg.Profile.AgentID != cfg.AgentID {
		return nil, fmt.Errorf("profile belongs to agent %q, not %q", cfg.Profile.AgentID, cfg.AgentID)
	}
	if cfg.Profile.Model == "" {
		return nil, fmt.Errorf("agent %q has no model", cfg.AgentID)
	}
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.FS == nil {
		return nil, errors.New("filesystem is required")
	}
	if cfg.Layout.Root == "" {
		return nil, errors.New("layout root is required")
	}
	if cfg.Activity == nil {
		return nil, errors.New("activity log is required")
	}

	store := cfg.Store
	if store == nil {
		store = fingerprint.NewStore(cfg.FS)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Worker{
		agentID:   cfg.AgentID,
		profile:   cfg.Profile,
		provider:  cfg.Provider,
		fs:        cfg.FS,
		layout:    cfg.Layout,
		store:     store,
		activity:  cfg.Activity,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "agent").Str("agent_id", cfg.AgentID).Logger(),
		maxTokens: maxTokens,
		clock:     clock,
	}, nil
}

// AgentID returns the agent this worker serves.
func (w *Worker) AgentID() string {
	return w.agentID
}

// State returns the current loop state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Prompt combines the persona with the inbox content.
func (w *Worker) Prompt(content string) string {
	return w.profile.Persona + promptSeparator + content
}

// Cycle inspects the agent inbox once and answers new content. Generation
// failures become error responses; nothing escapes the cycle.
func (w *Worker) Cycle(ctx context.Context) Outcome {
	ctx = tracing.NewCycleContext(ctx, w.agentID)
	logger := tracing.LoggerFromContext(ctx, w.logger)

	changed, content, err := w.store.Observe(w.layout.AgentInbox(w.agentID))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read inbox")
		w.metrics.RecordCycle(w.agentID, "error")
		return Outcome{Err: err}
	}
	if !changed {
		w.metrics.RecordCycle(w.agentID, "idle")
		return Outcome{}
	}

	w.state.Store(int32(StateProcessing))
	defer w.state.Store(int32(StateIdle))

	input := string(content)
	var envelopeID string
	if env, err := mailbox.ParseEnvelope(content); err == nil {
		envelopeID = env.ID
		logger = logger.With().Str("envelope_id", env.ID).Str("intent", string(env.Intent)).Logger()
	}
	logger.Info().Int("input_length", utf8.RuneCountInString(input)).Msg("Processing request")

	startedAt := w.clock()
	body, genErr := w.generate(ctx, input)
	finishedAt := w.clock()
	duration := finishedAt.Sub(startedAt)

	failed := genErr != nil
	if failed {
		body = mailbox.ErrorBody(genErr)
		logger.Error().Err(genErr).Msg("Generation failed")
	}

	response := mailbox.Response{
		AgentID:   w.agentID,
		Model:     w.profile.Model,
		Body:      body,
		CreatedAt: finishedAt,
		Duration:  duration,
		Failed:    failed,
	}

	recordErr := genErr
	publishErr := mailbox.Publish(w.fs, w.layout.AgentOutbox(w.agentID), response.Render())
	if publishErr != nil {
		publishErr = fmt.Errorf("failed to publish response: %w", publishErr)
		logger.Error().Err(publishErr).Msg("Response lost")
		if recordErr == nil {
			recordErr = publishErr
		}
	}

	record := activity.ProcessRecord(activity.Processing{
		AgentID:   w.agentID,
		Model:     w.profile.Model,
		StartedAt: startedAt,
		Finished:  finishedAt,
		Duration:  duration,
		InputLen:  utf8.RuneCountInString(input),
		OutputLen: utf8.RuneCountInString(body),
		Err:       recordErr,
	})
	if err := w.activity.Append(record); err != nil {
		logger.Warn().Err(err).Msg("Failed to append activity record")
	}

	status := "ok"
	if recordErr != nil {
		status = "error"
	}
	w.metrics.RecordGeneration(w.agentID, status, duration)
	w.metrics.RecordCycle(w.agentID, status)

	if recordErr == nil {
		logger.Info().Dur("duration", duration).Msg("Response published")
	}

	return Outcome{
		Processed:  true,
		Failed:     recordErr != nil,
		Duration:   duration,
		Err:        recordErr,
		EnvelopeID: envelopeID,
	}
}

func (w *Worker) generate(ctx context.Context, input string) (string, error) {
	resp, err := w.provider.Call(ctx, llm.Request{
		Model:     w.profile.Model,
		Prompt:    w.Prompt(input),
		MaxTokens: w.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Content, nil
}

// Run drives Cycle until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, opts poller.Options) error {
	if opts.Name == "" {
		opts.Name = w.agentID
	}
	return poller.Run(ctx, opts, func(ctx context.Context) {
		w.Cycle(ctx)
	})
}
