package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	agentID      string
	pollInterval time.Duration
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run one agent worker",
	Long: `Watch inbox/<agent>.md and answer every new envelope into
outbox/<agent>.md using the agent's model and persona.`,
	Args: cobra.NoArgs,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentID, "agent", "", "agent id, e.g. planner")
	agentCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "poll interval (default from config, 2s)")
	_ = agentCmd.MarkFlagRequired("agent")
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	if pollInterval < 0 {
		return fmt.Errorf("invalid --poll-interval %s", pollInterval)
	}

	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	w, err := rt.newWorker(agentID)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return rt.serveMetrics(ctx) })
	g.Go(func() error { return w.Run(ctx, rt.agentPoll(agentID, pollInterval)) })
	return g.Wait()
}
