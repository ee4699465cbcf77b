package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harun/fsdispatch/pkg/dispatch"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory layout and default configuration",
	Long: `Create inbox/, outbox/, logs/, config/ and prompts/, write the default
routing rules and model assignments when absent, and materialize a persona
file for every known agent. Existing files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.table.Validate(); err != nil {
		return err
	}

	agents := map[string]bool{}
	for _, id := range dispatch.DefaultAgents() {
		agents[id] = true
	}
	for _, id := range rt.table.Agents() {
		agents[id] = true
	}
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Data directory: %s\n", rt.layout.Root)
	fmt.Fprintf(out, "Routing rules: %s\n", rt.layout.RulesFile())
	fmt.Fprintf(out, "Model assignments: %s\n", rt.layout.AssignmentsFile())

	for _, id := range ids {
		profile, err := rt.table.ResolveProfile(id)
		if err != nil {
			return err
		}
		note := ""
		if profile.BlankPersonaFile {
			note = " (blank, using " + string(profile.PersonaSource) + " persona)"
		}
		fmt.Fprintf(out, "Agent %-10s model=%s persona=%s%s\n", id, profile.Model, rt.table.PersonaPath(id), note)
	}

	fmt.Fprintf(out, "\nWrite a message to %s and run: fsdispatch up\n", rt.layout.SharedInbox())
	return nil
}
