package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/engine"
)

func newStore(t *testing.T) *HistoryStore {
	t.Helper()
	h, err := NewHistoryStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryChronological(t *testing.T) {
	h := newStore(t)
	require.NoError(t, h.AddMessage("c1", "human", "first"))
	require.NoError(t, h.AddMessage("c1", "ai", "second"))
	require.NoError(t, h.AddMessage("c2", "human", "other chat"))
	require.NoError(t, h.AddMessage("c1", "human", "third"))

	hist, err := h.GetHistory("c1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, llms.ChatMessageTypeAI, hist[0].Role)
	assert.Equal(t, llms.TextPart("second"), hist[0].Parts[0])
	assert.Equal(t, llms.TextPart("third"), hist[1].Parts[0])
}

func TestSaveAndGetRun(t *testing.T) {
	h := newStore(t)
	ctx := context.Background()

	plan := engine.Plan{Steps: []engine.Step{
		{ID: 0, Worker: "math", Task: "add 2 and 3"},
		{ID: 1, Worker: "ghost", Task: "haunt", DependsOn: []int{0}},
	}}
	res := &engine.Result{
		Records: []engine.ExecutionRecord{
			{StepID: 0, Worker: "math", Task: "add 2 and 3", Output: "5"},
			{StepID: 1, Worker: "ghost", Task: "haunt", Error: "unknown worker: ghost"},
		},
		Combined: "math: 5",
		Waves:    [][]int{{0}, {1}},
	}

	id, err := h.SaveRun(ctx, "c1", "do things", plan, res, nil)
	require.NoError(t, err)

	run, err := h.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "c1", run.ChatID)
	assert.Equal(t, "do things", run.Request)
	assert.Equal(t, "math: 5", run.Combined)
	if diff := cmp.Diff(plan, run.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(res.Records, run.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, res.Waves, run.Waves)
	assert.False(t, run.CreatedAt.IsZero())
	assert.False(t, run.Succeeded())
}

func TestSaveRunWithoutResult(t *testing.T) {
	h := newStore(t)
	ctx := context.Background()
	plan := engine.Plan{Steps: []engine.Step{{ID: 0, Worker: "math", Task: "x", DependsOn: []int{0}}}}

	id, err := h.SaveRun(ctx, "c1", "loop", plan, nil, engine.ErrGraphUnresolvable)
	require.NoError(t, err)

	run, err := h.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, run.Records)
	assert.Equal(t, engine.ErrGraphUnresolvable.Error(), run.Error)
	assert.False(t, run.Succeeded())
}

func TestRecentRunsAndNotFound(t *testing.T) {
	h := newStore(t)
	ctx := context.Background()
	for _, req := range []string{"a", "b", "c"} {
		_, err := h.SaveRun(ctx, "c1", req, engine.Plan{}, &engine.Result{Combined: engine.NoResults}, nil)
		require.NoError(t, err)
	}
	_, err := h.SaveRun(ctx, "c2", "elsewhere", engine.Plan{}, nil, nil)
	require.NoError(t, err)

	runs, err := h.RecentRuns(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Request)
	assert.Equal(t, "b", runs[1].Request)
	assert.True(t, runs[0].Succeeded())

	_, err = h.GetRun(ctx, 999)
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
