package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(inv Invoker, opts Options) *Scheduler {
	opts.Logger = quietLogger()
	return New(inv, opts)
}

func echo(ctx context.Context, worker, task string) (string, error) {
	return worker + " did " + task, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	waves    [][]int
	finished []int
	runs     int
}

func (o *recordingObserver) WaveStarted(_ context.Context, _ int, ids []int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waves = append(o.waves, ids)
}

func (o *recordingObserver) StepFinished(_ context.Context, rec ExecutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, rec.StepID)
}

func (o *recordingObserver) RunFinished(context.Context, *Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
}

func TestRun_IndependentStepsRunInOneConcurrentWave(t *testing.T) {
	const n = 4
	started := make(chan struct{}, n)
	release := make(chan struct{})

	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return task, nil
	})

	plan := Plan{}
	for i := 0; i < n; i++ {
		plan.Steps = append(plan.Steps, Step{ID: i, Worker: "w", Task: string(rune('a' + i))})
	}

	obs := &recordingObserver{}
	s := newTestScheduler(inv, Options{Observer: obs})

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Run(context.Background(), plan)
		done <- outcome{res, err}
	}()

	// Every step must be in flight at the same time before any of them is released.
	for i := 0; i < n; i++ {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d steps started concurrently", i, n)
		}
	}
	close(release)

	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, out.res.Waves)
	assert.Len(t, obs.waves, 1)
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, "w: a | w: b | w: c | w: d", out.res.Combined)
}

func TestRun_WaveCountEqualsGraphHeight(t *testing.T) {
	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "a", Task: "root"},
		{ID: 1, Worker: "b", Task: "left", DependsOn: []int{0}},
		{ID: 2, Worker: "c", Task: "right", DependsOn: []int{0}},
		{ID: 3, Worker: "d", Task: "join", DependsOn: []int{1, 2}},
		{ID: 4, Worker: "e", Task: "loner"},
	}}

	s := newTestScheduler(InvokerFunc(echo), Options{})
	res, err := s.Run(context.Background(), plan)
	require.NoError(t, err)

	want := [][]int{{0, 4}, {1, 2}, {3}}
	if diff := cmp.Diff(want, res.Waves); diff != "" {
		t.Errorf("waves mismatch (-want +got):\n%s", diff)
	}

	static, err := Waves(plan)
	require.NoError(t, err)
	assert.Equal(t, want, static)
	assert.Len(t, res.Records, 5)
}

func TestRun_UnresolvableGraphs(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		pending []int
	}{
		{
			name: "two step cycle next to a runnable step",
			plan: Plan{Steps: []Step{
				{ID: 0, Worker: "a", Task: "x", DependsOn: []int{1}},
				{ID: 1, Worker: "b", Task: "y", DependsOn: []int{0}},
				{ID: 2, Worker: "c", Task: "free"},
			}},
			pending: []int{0, 1},
		},
		{
			name: "self dependency",
			plan: Plan{Steps: []Step{
				{ID: 0, Worker: "a", Task: "x", DependsOn: []int{0}},
			}},
			pending: []int{0},
		},
		{
			name: "dependency on an id outside the plan",
			plan: Plan{Steps: []Step{
				{ID: 0, Worker: "a", Task: "x"},
				{ID: 1, Worker: "b", Task: "y", DependsOn: []int{7}},
			}},
			pending: []int{1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
				calls.Add(1)
				return "ok", nil
			})

			res, err := newTestScheduler(inv, Options{}).Run(context.Background(), tc.plan)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrGraphUnresolvable))
			assert.Nil(t, res)
			assert.Zero(t, calls.Load(), "no step may run for an unresolvable plan")

			var unresolved *UnresolvableError
			require.ErrorAs(t, err, &unresolved)
			assert.Equal(t, tc.pending, unresolved.Pending)
		})
	}
}

func TestRun_DuplicateIDsRejected(t *testing.T) {
	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "a", Task: "x"},
		{ID: 0, Worker: "b", Task: "y"},
	}}
	res, err := newTestScheduler(InvokerFunc(echo), Options{}).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrInvalidPlan)
	assert.Nil(t, res)
}

func TestRun_CombinedOutputFollowsDeclarationOrder(t *testing.T) {
	fastDone := make(chan struct{})
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		switch worker {
		case "fast":
			close(fastDone)
			return "b", nil
		case "slow":
			<-fastDone
			return "a", nil
		}
		return "", errors.New("unexpected worker")
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "slow", Task: "first"},
		{ID: 1, Worker: "fast", Task: "second"},
	}}

	res, err := newTestScheduler(inv, Options{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "slow: a | fast: b", res.Combined)
	assert.Equal(t, []int{0, 1}, []int{res.Records[0].StepID, res.Records[1].StepID})
}

func TestRun_EffectiveTaskListsDependenciesByID(t *testing.T) {
	betaDone := make(chan struct{})
	var mu sync.Mutex
	seen := map[string]string{}

	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		mu.Lock()
		seen[worker] = task
		mu.Unlock()
		switch worker {
		case "alpha":
			<-betaDone
			return "A", nil
		case "beta":
			close(betaDone)
			return "B", nil
		}
		return "merged", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "alpha", Task: "one"},
		{ID: 1, Worker: "beta", Task: "two"},
		{ID: 2, Worker: "join", Task: "merge", DependsOn: []int{1, 0}},
	}}

	res, err := newTestScheduler(inv, Options{}).Run(context.Background(), plan)
	require.NoError(t, err)

	want := "Context from previous steps:\nStep 0 (alpha): A\nStep 1 (beta): B\n\nTask: merge"
	assert.Equal(t, want, seen["join"])
	assert.Equal(t, "one", seen["alpha"], "steps without dependencies get their task unchanged")

	rec, ok := res.Record(2)
	require.True(t, ok)
	assert.Equal(t, "merge", rec.Task, "records keep the original task")
}

func TestRun_UnknownWorkerDoesNotBlockOthers(t *testing.T) {
	var mu sync.Mutex
	tasks := map[int]string{}
	ids := map[string]int{"ghost": 0, "ok": 1, "after-ghost": 2, "after-ok": 3}

	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		mu.Lock()
		tasks[ids[worker]] = task
		mu.Unlock()
		if worker == "ghost" {
			return "ignored", UnknownWorkerError(worker)
		}
		return "done", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "ghost", Task: "haunt"},
		{ID: 1, Worker: "ok", Task: "work"},
		{ID: 2, Worker: "after-ghost", Task: "follow", DependsOn: []int{0}},
		{ID: 3, Worker: "after-ok", Task: "follow", DependsOn: []int{1}},
	}}

	res, err := newTestScheduler(inv, Options{}).Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Records, 4)

	ghost := res.Records[0]
	assert.Equal(t, "unknown worker: ghost", ghost.Error)
	assert.Empty(t, ghost.Output)
	for _, rec := range res.Records[1:] {
		assert.False(t, rec.Failed(), "step %d", rec.StepID)
	}

	assert.Contains(t, tasks[2], "Step 0 (ghost) failed: unknown worker: ghost")
	assert.Equal(t, "ok: done | after-ghost: done | after-ok: done", res.Combined)
}

func TestRun_FailFastStopsAfterFailingWave(t *testing.T) {
	var laterCalls atomic.Int32
	siblingStarted := make(chan struct{})
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		switch worker {
		case "broken":
			<-siblingStarted
			return "", errors.New("boom")
		case "sibling":
			close(siblingStarted)
			<-ctx.Done()
			return "", ctx.Err()
		}
		laterCalls.Add(1)
		return "late", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "broken", Task: "x"},
		{ID: 1, Worker: "sibling", Task: "y"},
		{ID: 2, Worker: "later", Task: "z", DependsOn: []int{0}},
	}}

	res, err := newTestScheduler(inv, Options{Policy: FailFast}).Run(context.Background(), plan)
	require.ErrorIs(t, err, ErrStepFailed)

	var failed *StepFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 0, failed.StepID)
	assert.Equal(t, "boom", failed.Reason)

	require.NotNil(t, res)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "boom", res.Records[0].Error)
	assert.Contains(t, res.Records[1].Error, "context canceled")
	assert.Zero(t, laterCalls.Load())
	assert.Equal(t, NoResults, res.Combined)
}

func TestRun_BestEffortRunsDependentsOfFailures(t *testing.T) {
	var laterCalls atomic.Int32
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		if worker == "broken" {
			return "", errors.New("boom")
		}
		laterCalls.Add(1)
		return "fine", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "broken", Task: "x"},
		{ID: 1, Worker: "later", Task: "z", DependsOn: []int{0}},
	}}

	res, err := newTestScheduler(inv, Options{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int32(1), laterCalls.Load())
	assert.Equal(t, "later: fine", res.Combined)
}

func TestRun_StepTimeoutIsAStepFailure(t *testing.T) {
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		if worker == "hang" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "quick", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "hang", Task: "wait"},
		{ID: 1, Worker: "fast", Task: "go"},
	}}

	res, err := newTestScheduler(inv, Options{StepTimeout: 20 * time.Millisecond}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Contains(t, res.Records[0].Error, "deadline exceeded")
	assert.Equal(t, "fast: quick", res.Combined)
}

func TestRun_MaxParallelCapsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})

	plan := Plan{}
	for i := 0; i < 5; i++ {
		plan.Steps = append(plan.Steps, Step{ID: i, Worker: "w", Task: "t"})
	}

	res, err := newTestScheduler(inv, Options{MaxParallel: 2}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, res.Waves, 1, "the cap never splits a wave")
}

func TestRun_PanickingWorkerIsRecorded(t *testing.T) {
	inv := InvokerFunc(func(ctx context.Context, worker, task string) (string, error) {
		if worker == "wild" {
			panic("boom")
		}
		return "calm", nil
	})

	plan := Plan{Steps: []Step{
		{ID: 0, Worker: "wild", Task: "x"},
		{ID: 1, Worker: "tame", Task: "y"},
	}}

	res, err := newTestScheduler(inv, Options{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, "worker panicked: boom", res.Records[0].Error)
	assert.Equal(t, "tame: calm", res.Combined)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": BestEffort, "best_effort": BestEffort, "Fail-Fast": FailFast} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, NoResults, Combine(nil))
	assert.Equal(t, NoResults, Combine([]ExecutionRecord{{Worker: "a", Error: "x"}}))

	got := Combine([]ExecutionRecord{
		{Worker: "math", Output: "25"},
		{Worker: "string", Error: "unknown worker: string"},
		{Worker: "writer", Output: "done"},
	})
	assert.Equal(t, "math: 25 | writer: done", got)
}

func TestEffectiveTask(t *testing.T) {
	completed := map[int]ExecutionRecord{
		0: {StepID: 0, Worker: "math", Output: "120"},
		1: {StepID: 1, Worker: "strng", Error: "unknown worker: strng"},
	}

	assert.Equal(t, "plain", EffectiveTask(Step{ID: 2, Task: "plain"}, completed))

	got := EffectiveTask(Step{ID: 2, Task: "summarise", DependsOn: []int{1, 0, 1}}, completed)
	want := strings.Join([]string{
		"Context from previous steps:",
		"Step 0 (math): 120",
		"Step 1 (strng) failed: unknown worker: strng",
		"",
		"Task: summarise",
	}, "\n")
	assert.Equal(t, want, got)
}
