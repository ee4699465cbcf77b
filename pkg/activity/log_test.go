package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 10, 19, 9, 30, 0, 0, time.Local)

func TestLog_AppendText(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, err := Open(fs, "logs/messages.log", FormatText)
	require.NoError(t, err)

	require.NoError(t, l.Append(RouteRecord(at, "feature_request", "planner", "env1", 34, false)))
	require.NoError(t, l.Append(ProcessRecord(Processing{
		AgentID:   "planner",
		Model:     "m",
		StartedAt: at,
		Finished:  at.Add(2 * time.Second),
		Duration:  2 * time.Second,
		InputLen:  120,
		OutputLen: 900,
	})))
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, "logs/messages.log")
	require.NoError(t, err)

	expected := "[2026-10-19 09:30:00] router routed\n" +
		"intent: feature_request\n" +
		"agent: planner\n" +
		"envelope: env1\n" +
		"message_length: 34\n" +
		"fallback: false\n" +
		"---\n" +
		"[2026-10-19 09:30:02] planner processed\n" +
		"model: m\n" +
		"status: ok\n" +
		"started: 2026-10-19 09:30:00\n" +
		"processing_time: 2.00s\n" +
		"input_length: 120 chars\n" +
		"output_length: 900 chars\n" +
		"---\n"
	assert.Equal(t, expected, string(data))
}

func TestLog_AppendKeepsExistingContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "logs/messages.log", []byte("earlier\n"), 0644))

	l, err := Open(fs, "logs/messages.log", "")
	require.NoError(t, err)
	require.NoError(t, l.Append(DispatchFailedRecord(at, "general", "ghost", errors.New("no model\nassigned"))))
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, "logs/messages.log")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "earlier\n[2026-10-19 09:30:00] router dispatch_failed\n"))
	assert.Contains(t, string(data), "error: no model assigned\n")
}

func TestLog_AppendJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, err := Open(fs, "messages.log", FormatJSON)
	require.NoError(t, err)

	require.NoError(t, l.Append(ProcessRecord(Processing{
		AgentID:  "coder",
		Model:    "m",
		Finished: at,
		Err:      errors.New("timeout"),
	})))
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, "messages.log")
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "coder", entry["actor"])
	assert.Equal(t, EventProcessed, entry["event"])
	assert.Equal(t, "error", entry["status"])
	assert.Equal(t, "timeout", entry["error"])
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestOpen_RejectsUnknownFormat(t *testing.T) {
	_, err := Open(afero.NewMemMapFs(), "messages.log", "xml")
	assert.Error(t, err)
}

// Two handles on the same file stand in for two processes.
func TestLog_ConcurrentWritersDoNotInterleaveRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.log")
	fs := afero.NewOsFs()

	router, err := Open(fs, path, FormatText)
	require.NoError(t, err)
	worker, err := Open(fs, path, FormatText)
	require.NoError(t, err)

	const perWriter = 50
	var wg sync.WaitGroup
	for _, l := range []*Log{router, worker} {
		wg.Add(1)
		go func(l *Log) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, l.Append(RouteRecord(at, "general", "helper", fmt.Sprintf("e%d", i), i, false)))
			}
		}(l)
	}
	wg.Wait()
	require.NoError(t, router.Close())
	require.NoError(t, worker.Close())

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	blocks := strings.Split(strings.TrimSuffix(string(data), "---\n"), "---\n")
	require.Len(t, blocks, 2*perWriter)
	for _, block := range blocks {
		assert.True(t, strings.HasPrefix(block, "[2026-10-19 09:30:00] router routed\n"))
		assert.Equal(t, 6, strings.Count(block, "\n"))
	}
}
