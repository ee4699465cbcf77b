package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/harun/fsdispatch/internal/config"
	"github.com/harun/fsdispatch/internal/logger"
	"github.com/harun/fsdispatch/internal/metrics"
	"github.com/harun/fsdispatch/pkg/activity"
	"github.com/harun/fsdispatch/pkg/agent"
	"github.com/harun/fsdispatch/pkg/classifier"
	"github.com/harun/fsdispatch/pkg/dispatch"
	"github.com/harun/fsdispatch/pkg/llm"
	"github.com/harun/fsdispatch/pkg/mailbox"
	"github.com/harun/fsdispatch/pkg/poller"
	"github.com/harun/fsdispatch/pkg/router"
)

// newProvider is swapped in tests.
var newProvider = llm.NewProvider

// runtime is the wiring shared by every command that touches a data dir.
type runtime struct {
	cfg      *config.Config
	fs       afero.Fs
	layout   mailbox.Layout
	log      *logger.Logger
	logger   zerolog.Logger
	table    *dispatch.Table
	activity *activity.Log
	metrics  *metrics.Metrics
	provider llm.Provider
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile).WithDataDir(dataDir).Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRuntime loads the configuration and opens the data dir. Loop commands
// pass withProvider so a missing credential fails before anything starts.
func newRuntime(cmd *cobra.Command, withProvider bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	if withProvider {
		if err := cfg.RequireCredential(); err != nil {
			return nil, err
		}
		provider, err = newProvider(cfg.Provider.Name, cfg.Provider.APIKey)
		if err != nil {
			return nil, err
		}
	}

	log, err := logger.New(cfg.Logging,
		logger.WithConsole(cmd.ErrOrStderr()),
		logger.WithSecrets(cfg.Provider.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		fs:       afero.NewOsFs(),
		layout:   mailbox.NewLayout(cfg.DataDir),
		log:      log,
		logger:   log.Zerolog(),
		metrics:  metrics.NewMetrics(),
		provider: provider,
	}

	if err := rt.open(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) open() error {
	if err := rt.layout.Ensure(rt.fs); err != nil {
		return err
	}

	table, err := dispatch.Load(rt.fs, dispatch.Paths{
		RulesFile:       rt.layout.RulesFile(),
		AssignmentsFile: rt.layout.AssignmentsFile(),
		PromptsDir:      rt.layout.PromptsDir(),
	}, dispatch.Options{
		FallbackIntent: dispatch.Intent(rt.cfg.Router.FallbackIntent),
		DefaultAgent:   rt.cfg.Router.DefaultAgent,
	})
	if err != nil {
		return err
	}
	rt.table = table

	log, err := activity.Open(rt.fs, rt.layout.ActivityLog(), activity.Format(rt.cfg.ActivityLog.Format))
	if err != nil {
		return err
	}
	rt.activity = log
	return nil
}

// Close releases the activity log and the log file.
func (rt *runtime) Close() error {
	var errs []error
	if rt.activity != nil {
		errs = append(errs, rt.activity.Close())
	}
	if rt.log != nil {
		errs = append(errs, rt.log.Close())
	}
	return errors.Join(errs...)
}

func (rt *runtime) newRouter() (*router.Router, error) {
	if err := rt.table.Validate(); err != nil {
		return nil, err
	}

	return router.New(router.Config{
		FS:         rt.fs,
		Layout:     rt.layout,
		Classifier: rt.newClassifier(),
		Table:      rt.table,
		Activity:   rt.activity,
		Metrics:    rt.metrics,
		Logger:     rt.logger,
	})
}

func (rt *runtime) newClassifier() *classifier.Classifier {
	descriptions := make(map[dispatch.Intent]string, len(rt.cfg.Router.IntentDescriptions))
	for intent, desc := range rt.cfg.Router.IntentDescriptions {
		descriptions[dispatch.Intent(intent)] = desc
	}

	return classifier.New(rt.provider, classifier.Config{
		Model:        rt.cfg.Router.ClassifierModel,
		MaxTokens:    rt.cfg.Router.ClassifierMaxTokens,
		Intents:      rt.table.Intents(),
		Fallback:     rt.table.Fallback(),
		Descriptions: descriptions,
		Logger:       rt.logger,
	})
}

func (rt *runtime) newWorker(agentID string) (*agent.Worker, error) {
	profile, err := rt.table.ResolveProfile(agentID)
	if err != nil {
		return nil, err
	}

	rt.logger.Info().
		Str("agent_id", agentID).
		Str("model", profile.Model).
		Str("model_source", string(profile.ModelSource)).
		Str("persona_source", string(profile.PersonaSource)).
		Msg("Agent profile resolved")
	if profile.BlankPersonaFile {
		rt.logger.Warn().
			Str("agent_id", agentID).
			Str("path", rt.table.PersonaPath(agentID)).
			Str("persona_source", string(profile.PersonaSource)).
			Msg("Persona file is blank, using default persona")
	}

	return agent.New(agent.Config{
		AgentID:   agentID,
		Profile:   profile,
		Provider:  rt.provider,
		FS:        rt.fs,
		Layout:    rt.layout,
		Activity:  rt.activity,
		Metrics:   rt.metrics,
		Logger:    rt.logger,
		MaxTokens: rt.cfg.Agent.MaxTokens,
	})
}

func (rt *runtime) routerPoll() poller.Options {
	opts := poller.Options{
		Name:     router.LoopName,
		Interval: rt.cfg.Router.PollInterval,
		Schedule: rt.cfg.Router.Schedule,
		Logger:   rt.log.Component("poller"),
	}
	if rt.cfg.Router.Watch {
		opts.Watch = []string{rt.layout.SharedInbox()}
	}
	return opts
}

func (rt *runtime) agentPoll(agentID string, interval time.Duration) poller.Options {
	if interval <= 0 {
		interval = rt.cfg.Agent.PollInterval
	}
	opts := poller.Options{
		Name:     agentID,
		Interval: interval,
		Logger:   rt.log.Component("poller"),
	}
	if rt.cfg.Agent.Watch {
		opts.Watch = []string{rt.layout.AgentInbox(agentID)}
	}
	return opts
}

// serveMetrics exposes the registry until ctx is done. It is a no-op when no
// address is configured.
func (rt *runtime) serveMetrics(ctx context.Context) error {
	if rt.cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	server := &http.Server{
		Addr:              rt.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		metricsLog := rt.log.Component("metrics")
		metricsLog.Info().Str("addr", server.Addr).Msg("Metrics endpoint listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// agentsToRun returns the requested agents, the configured ones, or every
// agent the dispatch table can route to.
func (rt *runtime) agentsToRun(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	if len(rt.cfg.Agents) > 0 {
		return rt.cfg.Agents
	}
	return rt.table.Agents()
}
