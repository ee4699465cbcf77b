// Package activity is the append-only record of routing decisions and
// processing events shared by the router and every agent worker.
//
// Each record is rendered into a single buffer and written with one Write
// call on a file opened with O_APPEND, so records from concurrent processes
// never truncate each other.
package activity

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Format selects how records are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// TimestampLayout matches the timestamps written into mailboxes.
const TimestampLayout = "2006-01-02 15:04:05"

// Event names
const (
	EventRouted         = "routed"
	EventDispatchFailed = "dispatch_failed"
	EventProcessed      = "processed"
)

// Field is one key/value line of a record.
type Field struct {
	Key   string
	Value string
}

// Record is one activity entry.
type Record struct {
	Time   time.Time
	Actor  string
	Event  string
	Fields []Field
}

// Log appends records to the shared activity file.
type Log struct {
	mu     sync.Mutex
	file   afero.File
	format Format
}

// Open opens (creating if needed) the activity file at path for appending.
func Open(fs afero.Fs, path string, format Format) (*Log, error) {
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSON {
		return nil, fmt.Errorf("unsupported activity log format: %s", format)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create activity log directory: %w", err)
	}

	file, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}

	return &Log{file: file, format: format}, nil
}

// Append writes record as one self-terminated block.
func (l *Log) Append(record Record) error {
	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	var data []byte
	switch l.format {
	case FormatJSON:
		data = renderJSON(record)
	default:
		data = renderText(record)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("failed to append activity record: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func renderText(r Record) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] %s %s\n", r.Time.Format(TimestampLayout), r.Actor, r.Event)
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Key, strings.ReplaceAll(f.Value, "\n", " "))
	}
	b.WriteString("---\n")
	return b.Bytes()
}

// zerolog hands each finished event to the writer in one Write call.
func renderJSON(r Record) []byte {
	var b bytes.Buffer
	logger := zerolog.New(&b)
	entry := logger.Log().
		Time("time", r.Time).
		Str("actor", r.Actor).
		Str("event", r.Event)
	for _, f := range r.Fields {
		entry = entry.Str(f.Key, f.Value)
	}
	entry.Send()
	return b.Bytes()
}
