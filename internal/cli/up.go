package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harun/fsdispatch/pkg/agent"
)

var upAgents []string

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run the router and the agent workers in one process",
	Long: `Run the router and one worker per agent as independent loops of a
single process. Agents default to the configured list, or to every agent the
routing rules can target.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringSliceVar(&upAgents, "agents", nil, "comma separated agent ids to run")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	r, err := rt.newRouter()
	if err != nil {
		return err
	}

	agents := rt.agentsToRun(upAgents)
	workers := make([]*agent.Worker, 0, len(agents))
	for _, id := range agents {
		w, err := rt.newWorker(id)
		if err != nil {
			return err
		}
		workers = append(workers, w)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return rt.serveMetrics(ctx) })
	g.Go(func() error { return r.Run(ctx, rt.routerPoll()) })
	for _, w := range workers {
		opts := rt.agentPoll(w.AgentID(), 0)
		g.Go(func() error { return w.Run(ctx, opts) })
	}

	rt.logger.Info().Strs("agents", agents).Msg("fsdispatch up")
	return g.Wait()
}
