package cli

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Run the intent router",
	Long: `Watch inbox/chat.txt, classify every new message and publish it to the
inbox of the agent chosen by config/routing_rules.json.`,
	Args: cobra.NoArgs,
	RunE: runRouter,
}

func init() {
	rootCmd.AddCommand(routerCmd)
}

func runRouter(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	r, err := rt.newRouter()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return rt.serveMetrics(ctx) })
	g.Go(func() error { return r.Run(ctx, rt.routerPoll()) })
	return g.Wait()
}
