package mailbox

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/fsdispatch/pkg/dispatch"
)

// Envelope is what the router hands to an agent.
type Envelope struct {
	ID        string
	Intent    dispatch.Intent
	Message   string
	CreatedAt time.Time
}

const (
	envelopeHeading  = "# New Request - "
	intentPrefix     = "**Intent:** "
	envelopeIDPrefix = "**Envelope:** "
	messageMarker    = "**Original Message:**"
	sectionRule      = "---"
)

// ErrMalformedEnvelope is returned by ParseEnvelope for unrecognized content.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Render formats the envelope as markdown.
func (e Envelope) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s%s\n\n", envelopeHeading, e.CreatedAt.Format(TimestampLayout))
	fmt.Fprintf(&b, "%s%s\n", intentPrefix, e.Intent)
	if e.ID != "" {
		fmt.Fprintf(&b, "%s%s\n", envelopeIDPrefix, e.ID)
	}
	fmt.Fprintf(&b, "%s\n\n", messageMarker)
	b.WriteString(e.Message)
	fmt.Fprintf(&b, "\n\n%s\n", sectionRule)
	return b.Bytes()
}

// ParseEnvelope reads back a rendered envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	text := strings.TrimSpace(string(data))
	if !strings.HasPrefix(text, envelopeHeading) {
		return Envelope{}, fmt.Errorf("%w: missing heading", ErrMalformedEnvelope)
	}

	header, body, found := strings.Cut(text, messageMarker)
	if !found {
		return Envelope{}, fmt.Errorf("%w: missing message", ErrMalformedEnvelope)
	}

	var env Envelope
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, envelopeHeading):
			ts, err := time.ParseInLocation(TimestampLayout, strings.TrimPrefix(line, envelopeHeading), time.Local)
			if err != nil {
				return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
			}
			env.CreatedAt = ts
		case strings.HasPrefix(line, intentPrefix):
			env.Intent = dispatch.Intent(strings.TrimPrefix(line, intentPrefix))
		case strings.HasPrefix(line, envelopeIDPrefix):
			env.ID = strings.TrimPrefix(line, envelopeIDPrefix)
		}
	}
	if env.Intent == "" {
		return Envelope{}, fmt.Errorf("%w: missing intent", ErrMalformedEnvelope)
	}

	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, sectionRule)
	env.Message = strings.TrimSpace(body)
	return env, nil
}
