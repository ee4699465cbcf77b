package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mailbox status",
	Long:  `Show, for the shared inbox and every agent, whether a message or response is present, how old it is and how large.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	now := time.Now()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Data directory: %s\n", rt.layout.Root)
	fmt.Fprintf(out, "Shared inbox: %s\n", describeFile(rt.fs, rt.layout.SharedInbox(), now))
	fmt.Fprintf(out, "Activity log: %s\n\n", describeFile(rt.fs, rt.layout.ActivityLog(), now))

	writeAgentTable(out, rt.fs, rt.layout.AgentInbox, rt.layout.AgentOutbox, rt.agentsToRun(nil), now)
	return nil
}

func writeAgentTable(out io.Writer, fsys afero.Fs, inbox, outbox func(string) string, agents []string, now time.Time) {
	fmt.Fprintf(out, "%-12s %-28s %s\n", "AGENT", "INBOX", "OUTBOX")
	for _, id := range agents {
		fmt.Fprintf(out, "%-12s %-28s %s\n", id, describeFile(fsys, inbox(id), now), describeFile(fsys, outbox(id), now))
	}
}

// describeFile renders presence, age and size, e.g. "3m2s ago, 412 B".
func describeFile(fsys afero.Fs, path string, now time.Time) string {
	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "-"
	}
	if err != nil {
		return "error: " + err.Error()
	}
	age := now.Sub(info.ModTime())
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s ago, %d B", formatDuration(age), info.Size())
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
