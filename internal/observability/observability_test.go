package observability

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/switchboard/internal/chain"
	"github.com/rahul/switchboard/internal/engine"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesStreamAndTrace(t *testing.T) {
	var buf bytes.Buffer
	trace := filepath.Join(t.TempDir(), "logs", "trace.jsonl")
	l := NewLogger(&buf, trace)

	l.LogPlan("chat-1", "add numbers", map[string]int{"steps": 2})
	l.LogHeartbeat()

	events := decodeLines(t, buf.Bytes())
	require.Len(t, events, 2)
	assert.Equal(t, "plan", events[0]["type"])
	assert.Equal(t, "chat-1", events[0]["chat_id"])
	assert.NotEmpty(t, events[0]["timestamp"])

	data, err := os.ReadFile(trace)
	require.NoError(t, err)
	assert.Len(t, decodeLines(t, data), 2)
}

func TestLoggerRotatesTrace(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.jsonl")
	l := NewLogger(nil, trace)
	l.maxSize = 10

	l.LogHeartbeat()
	l.LogHeartbeat()

	_, err := os.Stat(trace + ".old")
	assert.NoError(t, err)
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.LogHeartbeat() })
}

func TestTrackerUpdatesStatusAndLogs(t *testing.T) {
	var buf bytes.Buffer
	st := NewStatus()
	tr := &Tracker{Log: NewLogger(&buf, ""), Status: st}
	ctx := WithChat(context.Background(), "c42")

	tr.WaveStarted(ctx, 1, []int{2, 3})
	snap := st.Snapshot()
	assert.Equal(t, RoleRunning, snap.Role)
	assert.Equal(t, 1, snap.Wave)
	assert.Equal(t, 2, snap.InFlight)

	tr.StepFinished(ctx, engine.ExecutionRecord{StepID: 2, Worker: "math", Output: "4"})
	assert.Equal(t, 1, st.Snapshot().InFlight)

	tr.OperationFinished(ctx, 0, chain.Entry{Operation: "add", Args: []any{2.0, 2.0}, Output: 4.0}, nil)
	tr.RunFinished(ctx, nil, errors.New("graph unresolvable"))

	events := decodeLines(t, buf.Bytes())
	require.Len(t, events, 4)
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e["type"].(string)
		assert.Equal(t, "c42", e["chat_id"])
	}
	assert.Equal(t, []string{"wave", "step", "operation", "run"}, types)
	assert.Equal(t, "graph unresolvable", events[3]["data"].(map[string]any)["error"])

	st.Set(RoleIdle, "")
	assert.Zero(t, st.Snapshot().InFlight)
}

func TestNewSlog(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlog("warn", "json", &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := strings.TrimSpace(buf.String())
	require.NotEmpty(t, out)
	assert.NotContains(t, out, "hidden")

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "shown", m["msg"])
	assert.Equal(t, "v", m["k"])
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ChatFrom(ctx))
	assert.NotNil(t, LoggerFrom(ctx))

	l := NewSlog("debug", "text", &bytes.Buffer{})
	ctx = WithLogger(WithChat(ctx, "x"), l)
	assert.Equal(t, "x", ChatFrom(ctx))
	assert.Same(t, l, LoggerFrom(ctx))
}
