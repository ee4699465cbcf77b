package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harun/fsdispatch/internal/metrics"
	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/llm"
	"github.com/harun/fsdispatch/pkg/mailbox"
	"github.com/harun/fsdispatch/pkg/poller"
)

// MockProvider is a mock implementation of llm.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Call(ctx context.Context, request llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*llm.Response)
	return resp, args.Error(1)
}

func (m *MockProvider) Provider() string {
	return "mock"
}

var start = time.Date(2026, 10, 19, 16, 0, 0, 0, time.Local)

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := start.Add(-step)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

type fixture struct {
	fs       afero.Fs
	layout   mailbox.Layout
	provider *MockProvider
	metrics  *metrics.Metrics
	worker   *Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	layout := mailbox.NewLayout("/data")
	require.NoError(t, layout.Ensure(fs))

	log, err := activity.Open(fs, layout.ActivityLog(), activity.FormatText)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	provider := &MockProvider{}
	m := metrics.NewMetrics()

	w, err := New(Config{
		AgentID: "planner",
		Profile: dispatch.Profile{
			AgentID: "planner",
			Model:   dispatch.ModelOpus,
			Persona: "You are the Planner agent.",
		},
		Provider: provider,
		FS:       fs,
		Layout:   layout,
		Activity: log,
		Metrics:  m,
		Logger:   zerolog.Nop(),
		Clock:    steppingClock(1500 * time.Millisecond),
	})
	require.NoError(t, err)

	return &fixture{fs: fs, layout: layout, provider: provider, metrics: m, worker: w}
}

func (f *fixture) deliver(t *testing.T, message string) string {
	t.Helper()
	env := mailbox.Envelope{ID: "env-1", Intent: dispatch.IntentFeatureRequest, Message: message, CreatedAt: start}
	data := env.Render()
	require.NoError(t, afero.WriteFile(f.fs, f.layout.AgentInbox("planner"), data, 0644))
	return strings.TrimSpace(string(data))
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := Config{
		AgentID:  "coder",
		Profile:  dispatch.Profile{AgentID: "coder", Model: "m"},
		Provider: &MockProvider{},
		FS:       fs,
		Layout:   mailbox.NewLayout("/data"),
		Activity: &activity.Log{},
	}

	w, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, w.maxTokens)
	assert.Equal(t, "coder", w.AgentID())
	assert.Equal(t, StateIdle, w.State())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing agent id", func(c *Config) { c.AgentID = "" }},
		{"foreign profile", func(c *Config) { c.Profile.AgentID = "tester" }},
		{"missing model", func(c *Config) { c.Profile.Model = "" }},
		{"missing provider", func(c *Config) { c.Provider = nil }},
		{"missing filesystem", func(c *Config) { c.FS = nil }},
		{"missing activity log", func(c *Config) { c.Activity = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestWorker_Prompt(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t,
		"You are the Planner agent.\n\n---\n\nUser Input:\nplan the migration",
		f.worker.Prompt("plan the migration"))
}

func TestWorker_Cycle(t *testing.T) {
	t.Run("answers a new envelope", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "1. Add a toggle\n2. Persist it"}, nil)
		input := f.deliver(t, "Please add a dark mode toggle")

		out := f.worker.Cycle(context.Background())

		require.NoError(t, out.Err)
		assert.True(t, out.Processed)
		assert.False(t, out.Failed)
		assert.Equal(t, 1500*time.Millisecond, out.Duration)
		assert.Equal(t, "env-1", out.EnvelopeID)

		req := f.provider.Calls[0].Arguments.Get(1).(llm.Request)
		assert.Equal(t, dispatch.ModelOpus, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		assert.Equal(t, f.worker.Prompt(input), req.Prompt)

		expected := mailbox.Response{
			AgentID:   "planner",
			Model:     dispatch.ModelOpus,
			Body:      "1. Add a toggle\n2. Persist it",
			CreatedAt: start.Add(1500 * time.Millisecond),
			Duration:  1500 * time.Millisecond,
		}
		assert.Equal(t, string(expected.Render()), f.read(t, f.layout.AgentOutbox("planner")))

		log := f.read(t, f.layout.ActivityLog())
		assert.Contains(t, log, "planner processed\n")
		assert.Contains(t, log, "status: ok\n")
		assert.Contains(t, log, "processing_time: 1.50s\n")
		assert.NotContains(t, log, "error:")

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AgentGenerationsTotal.WithLabelValues("planner", "ok")))
		assert.Equal(t, StateIdle, f.worker.State())
	})

	t.Run("same envelope is processed once", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "done"}, nil)
		f.deliver(t, "one thing")

		first := f.worker.Cycle(context.Background())
		second := f.worker.Cycle(context.Background())

		assert.True(t, first.Processed)
		assert.False(t, second.Processed)
		f.provider.AssertNumberOfCalls(t, "Call", 1)
		assert.Equal(t, 1, strings.Count(f.read(t, f.layout.ActivityLog()), "planner processed"))
	})

	t.Run("missing inbox is idle", func(t *testing.T) {
		f := newFixture(t)

		out := f.worker.Cycle(context.Background())

		assert.Equal(t, Outcome{}, out)
		exists, err := afero.Exists(f.fs, f.layout.AgentOutbox("planner"))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("provider failure writes an error response", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
		f.deliver(t, "do the thing")

		out := f.worker.Cycle(context.Background())

		assert.True(t, out.Processed)
		assert.True(t, out.Failed)
		assert.EqualError(t, out.Err, "connection reset")

		outbox := f.read(t, f.layout.AgentOutbox("planner"))
		assert.Contains(t, outbox, "Error processing request: connection reset")
		assert.Contains(t, outbox, "Status: error")
		assert.Contains(t, outbox, mailbox.SystemMarker)

		log := f.read(t, f.layout.ActivityLog())
		assert.Contains(t, log, "status: error\n")
		assert.Contains(t, log, "error: connection reset\n")
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AgentGenerationsTotal.WithLabelValues("planner", "error")))
	})

	t.Run("empty completion is a failure", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "  "}, nil)
		f.deliver(t, "say nothing")

		out := f.worker.Cycle(context.Background())

		assert.ErrorIs(t, out.Err, llm.ErrEmptyResponse)
		assert.Contains(t, f.read(t, f.layout.AgentOutbox("planner")), mailbox.ErrorPrefix)
	})

	t.Run("publish failure is recorded", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "answer"}, nil)
		f.deliver(t, "question")
		f.worker.fs = afero.NewReadOnlyFs(f.fs)

		out := f.worker.Cycle(context.Background())

		assert.True(t, out.Processed)
		assert.True(t, out.Failed)
		assert.ErrorContains(t, out.Err, "failed to publish response")

		log := f.read(t, f.layout.ActivityLog())
		assert.Contains(t, log, "status: error\n")
		assert.Contains(t, log, "output_length: 6 chars\n")
	})

	t.Run("hand-written inbox content is answered", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "sure"}, nil)
		require.NoError(t, afero.WriteFile(f.fs, f.layout.AgentInbox("planner"), []byte("plan a release\n"), 0644))

		out := f.worker.Cycle(context.Background())

		require.NoError(t, out.Err)
		assert.True(t, out.Processed)
		assert.Empty(t, out.EnvelopeID)
		req := f.provider.Calls[0].Arguments.Get(1).(llm.Request)
		assert.Equal(t, f.worker.Prompt("plan a release"), req.Prompt)
	})

	t.Run("new content after a response is processed again", func(t *testing.T) {
		f := newFixture(t)
		f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "ok"}, nil)

		f.deliver(t, "first")
		require.True(t, f.worker.Cycle(context.Background()).Processed)
		f.deliver(t, "second")
		require.True(t, f.worker.Cycle(context.Background()).Processed)

		f.provider.AssertNumberOfCalls(t, "Call", 2)
	})
}

func TestWorker_Run(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Call", mock.Anything, mock.Anything).Return(&llm.Response{Content: "planned"}, nil)
	f.deliver(t, "plan it")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.worker.Run(ctx, poller.Options{Interval: 10 * time.Millisecond, Logger: zerolog.Nop()})
	}()

	require.Eventually(t, func() bool {
		exists, _ := afero.Exists(f.fs, f.layout.AgentOutbox("planner"))
		return exists
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	f.provider.AssertNumberOfCalls(t, "Call", 1)
}
