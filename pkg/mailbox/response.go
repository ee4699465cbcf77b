package mailbox

import (
	"bytes"
	"fmt"
	"time"

	"github.com/harun/fsdispatch/pkg/dispatch"
)

// SystemMarker closes every agent response.
const SystemMarker = "*Generated by fsdispatch agent worker*"

// ErrorPrefix starts the body of a response whose generation failed.
const ErrorPrefix = "Error processing request: "

// Response is what an agent writes to its outbox.
type Response struct {
	AgentID   string
	Model     string
	Body      string
	CreatedAt time.Time
	Duration  time.Duration
	Failed    bool
}

// ErrorBody describes a failed generation in plain words.
func ErrorBody(err error) string {
	return ErrorPrefix + err.Error()
}

// Render formats the response as markdown.
func (r Response) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s Output - %s\n\n", dispatch.DisplayName(r.AgentID), r.CreatedAt.Format(TimestampLayout))
	status := "ok"
	if r.Failed {
		status = "error"
	}
	fmt.Fprintf(&b, "_Model: %s | Duration: %.2fs | Status: %s_\n\n", r.Model, r.Duration.Seconds(), status)
	b.WriteString(r.Body)
	fmt.Fprintf(&b, "\n\n---\n%s\n", SystemMarker)
	return b.Bytes()
}
