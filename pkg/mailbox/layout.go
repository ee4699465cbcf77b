// Package mailbox implements the filesystem transport: where inboxes and
// outboxes live, what routed envelopes and agent responses look like on disk,
// and how they are published atomically.
package mailbox

import (
	"fmt"
	"path/filepath"

	"github.com/harun/fsdispatch/pkg/fsutil"
	"github.com/spf13/afero"
)

// TimestampLayout is used for every human-readable timestamp on disk.
const TimestampLayout = "2006-01-02 15:04:05"

// Layout resolves locations under a base directory.
type Layout struct {
	Root string
}

// NewLayout creates a Layout rooted at root.
func NewLayout(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

func (l Layout) InboxDir() string   { return filepath.Join(l.Root, "inbox") }
func (l Layout) OutboxDir() string  { return filepath.Join(l.Root, "outbox") }
func (l Layout) LogsDir() string    { return filepath.Join(l.Root, "logs") }
func (l Layout) ConfigDir() string  { return filepath.Join(l.Root, "config") }
func (l Layout) PromptsDir() string { return filepath.Join(l.Root, "prompts") }

// SharedInbox is where external producers drop new user messages.
func (l Layout) SharedInbox() string {
	return filepath.Join(l.InboxDir(), "chat.txt")
}

// AgentInbox is written by the router and read by the agent.
func (l Layout) AgentInbox(agentID string) string {
	return filepath.Join(l.InboxDir(), agentID+".md")
}

// AgentOutbox is written by the agent and read by external consumers.
func (l Layout) AgentOutbox(agentID string) string {
	return filepath.Join(l.OutboxDir(), agentID+".md")
}

// ActivityLog is the append-only log shared by every loop.
func (l Layout) ActivityLog() string {
	return filepath.Join(l.LogsDir(), "messages.log")
}

func (l Layout) RulesFile() string {
	return filepath.Join(l.ConfigDir(), "routing_rules.json")
}

func (l Layout) AssignmentsFile() string {
	return filepath.Join(l.ConfigDir(), "model_assignments.json")
}

// Ensure creates every directory of the layout.
func (l Layout) Ensure(fs afero.Fs) error {
	for _, dir := range []string{l.InboxDir(), l.OutboxDir(), l.LogsDir(), l.ConfigDir(), l.PromptsDir()} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Publish atomically replaces the content at path. Any unconsumed previous
// content is lost.
func Publish(fs afero.Fs, path string, data []byte) error {
	return fsutil.WriteFileAtomic(fs, path, data, 0644)
}
