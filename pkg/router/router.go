// Package router watches the shared inbox, classifies each new message and
// hands it to the agent selected by the dispatch table.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/harun/fsdispatch/internal/metrics"
	"github.com/harun/fsdispatch/internal/tracing"
	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/classifier"
	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/fingerprint"
	"github.com/harun/fsdispatch/pkg/mailbox"
	"github.com/harun/fsdispatch/pkg/poller"
)

// LoopName identifies the router in logs and metrics.
const LoopName = "router"

// Dispatch error reasons
const (
	ReasonProfile = "profile"
	ReasonPublish = "publish"
)

// State of the router loop.
type State int32

const (
	StateIdle State = iota
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// IntentClassifier labels a message. It must not fail.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) classifier.Result
}

// RouteTable resolves intents to agents.
type RouteTable interface {
	ResolveRoute(intent dispatch.Intent) string
	ResolveProfile(agentID string) (dispatch.Profile, error)
}

// ActivityLog receives activity records.
type ActivityLog interface {
	Append(record activity.Record) error
}

// Config holds router dependencies
type Config struct {
	FS         afero.Fs
	Layout     mailbox.Layout
	Store      *fingerprint.Store
	Classifier IntentClassifier
	Table      RouteTable
	Activity   ActivityLog
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
	Clock      func() time.Time
	NewID      func() string
}

// Outcome reports what one cycle did.
type Outcome struct {
	Dispatched bool
	Intent     dispatch.Intent
	FellBack   bool
	AgentID    string
	EnvelopeID string
	Err        error
}

// Router moves messages from the shared inbox to agent inboxes.
type Router struct {
	fs         afero.Fs
	layout     mailbox.Layout
	store      *fingerprint.Store
	classifier IntentClassifier
	table      RouteTable
	activity   ActivityLog
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	clock      func() time.Time
	newID      func() string
	state      atomic.Int32
}

// New creates a Router
func New(cfg Config) (*Router, error) {
	if cfg.FS == nil {
		return nil, errors.New("filesystem is required")
	}
	if cfg.Layout.Root == "" {
		return nil, errors.New("layout root is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if cfg.Table == nil {
		return nil, errors.New("dispatch table is required")
	}
	if cfg.Activity == nil {
		return nil, errors.New("activity log is required")
	}

	store := cfg.Store
	if store == nil {
		store = fingerprint.NewStore(cfg.FS)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = newEnvelopeID
	}

	return &Router{
		fs:         cfg.FS,
		layout:     cfg.Layout,
		store:      store,
		classifier: cfg.Classifier,
		table:      cfg.Table,
		activity:   cfg.Activity,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", LoopName).Logger(),
		clock:      clock,
		newID:      newID,
	}, nil
}

func newEnvelopeID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		return fmt.Sprintf("env-%d", time.Now().UnixNano())
	}
	return id
}

// State returns the current loop state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Cycle inspects the shared inbox once and dispatches a new message if there
// is one. Failures are logged and reported in the Outcome; they never stop
// the loop.
func (r *Router) Cycle(ctx context.Context) Outcome {
	ctx = tracing.NewCycleContext(ctx, LoopName)
	logger := tracing.LoggerFromContext(ctx, r.logger)

	changed, content, err := r.store.Observe(r.layout.SharedInbox())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read shared inbox")
		r.metrics.RecordCycle(LoopName, "error")
		return Outcome{Err: err}
	}
	if !changed {
		r.metrics.RecordCycle(LoopName, "idle")
		return Outcome{}
	}

	r.state.Store(int32(StateDispatching))
	defer r.state.Store(int32(StateIdle))

	message := string(content)
	logger.Info().Int("message_length", len(message)).Msg("New message detected")

	result := r.classifier.Classify(ctx, message)
	if result.FellBack {
		r.metrics.RecordFallback(result.Reason)
	}

	agentID := r.table.ResolveRoute(result.Intent)
	logger = logger.With().Str("intent", string(result.Intent)).Str("agent_id", agentID).Logger()

	if _, err := r.table.ResolveProfile(agentID); err != nil {
		return r.fail(logger, result, agentID, ReasonProfile, err)
	}

	envelope := mailbox.Envelope{
		ID:        r.newID(),
		Intent:    result.Intent,
		Message:   message,
		CreatedAt: r.clock(),
	}
	if err := mailbox.Publish(r.fs, r.layout.AgentInbox(agentID), envelope.Render()); err != nil {
		return r.fail(logger, result, agentID, ReasonPublish, fmt.Errorf("failed to publish envelope: %w", err))
	}

	record := activity.RouteRecord(envelope.CreatedAt, string(result.Intent), agentID, envelope.ID, len(message), result.FellBack)
	if err := r.activity.Append(record); err != nil {
		logger.Warn().Err(err).Msg("Failed to append activity record")
	}

	r.metrics.RecordRoute(string(result.Intent), agentID)
	r.metrics.RecordCycle(LoopName, "dispatched")
	logger.Info().
		Str("envelope_id", envelope.ID).
		Bool("fallback", result.FellBack).
		Msg("Message routed")

	return Outcome{
		Dispatched: true,
		Intent:     result.Intent,
		FellBack:   result.FellBack,
		AgentID:    agentID,
		EnvelopeID: envelope.ID,
	}
}

func (r *Router) fail(logger zerolog.Logger, result classifier.Result, agentID, reason string, err error) Outcome {
	logger.Error().Err(err).Str("reason", reason).Msg("Dispatch failed")

	record := activity.DispatchFailedRecord(r.clock(), string(result.Intent), agentID, err)
	if appendErr := r.activity.Append(record); appendErr != nil {
		logger.Warn().Err(appendErr).Msg("Failed to append activity record")
	}

	r.metrics.RecordDispatchError(reason)
	r.metrics.RecordCycle(LoopName, "error")

	return Outcome{
		Intent:   result.Intent,
		FellBack: result.FellBack,
		AgentID:  agentID,
		Err:      err,
	}
}

// Run drives Cycle until ctx is cancelled.
func (r *Router) Run(ctx context.Context, opts poller.Options) error {
	if opts.Name == "" {
		opts.Name = LoopName
	}
	return poller.Run(ctx, opts, func(ctx context.Context) {
		r.Cycle(ctx)
	})
}
