// Package engine executes a plan of dependent steps in waves.
//
// Every step whose dependencies have all completed runs concurrently with the other
// ready steps; the next wave starts only after the whole current wave has joined.
// Per-step failures are recorded as data and never cross the wave boundary unless the
// FailFast policy is selected.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Invoker runs one worker on one task. Implementations must be safe for concurrent use.
type Invoker interface {
	Invoke(ctx context.Context, worker, task string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, worker, task string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, worker, task string) (string, error) {
	return f(ctx, worker, task)
}

// Policy controls how a failed step affects the rest of the run.
type Policy int

const (
	// BestEffort records failures and keeps going. Dependents still run and see the
	// failure in their context.
	BestEffort Policy = iota
	// FailFast cancels the failing wave's siblings and stops the run after that wave.
	FailFast
)

func (p Policy) String() string {
	switch p {
	case BestEffort:
		return "best_effort"
	case FailFast:
		return "fail_fast"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration value to a Policy. The empty string is BestEffort.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best_effort", "best-effort":
		return BestEffort, nil
	case "fail_fast", "fail-fast":
		return FailFast, nil
	default:
		return BestEffort, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Observer receives progress callbacks. StepFinished is called from wave goroutines,
// so implementations must be safe for concurrent use.
type Observer interface {
	WaveStarted(ctx context.Context, index int, ids []int)
	StepFinished(ctx context.Context, rec ExecutionRecord)
	RunFinished(ctx context.Context, res *Result, err error)
}

// NopObserver ignores all callbacks.
type NopObserver struct{}

func (NopObserver) WaveStarted(context.Context, int, []int)       {}
func (NopObserver) StepFinished(context.Context, ExecutionRecord) {}
func (NopObserver) RunFinished(context.Context, *Result, error)   {}

// Options configure a Scheduler.
type Options struct {
	Policy Policy
	// MaxParallel caps concurrent invocations inside a wave. Zero means no cap.
	MaxParallel int
	// StepTimeout bounds each invocation. Expiry is an ordinary step failure.
	StepTimeout time.Duration
	// RunTimeout bounds the whole run and is shared by every in-flight step.
	RunTimeout time.Duration
	Observer   Observer
	Logger     *slog.Logger
}

// Scheduler runs plans against an Invoker.
type Scheduler struct {
	invoker  Invoker
	opts     Options
	observer Observer
	logger   *slog.Logger
}

// New creates a Scheduler.
func New(invoker Invoker, opts Options) *Scheduler {
	s := &Scheduler{
		invoker:  invoker,
		opts:     opts,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run executes the plan wave by wave and returns the records in plan order together
// with the combined output. Unresolvable plans return a nil Result: no step runs.
// Under FailFast a failed step yields the partial Result and a *StepFailedError.
func (s *Scheduler) Run(ctx context.Context, plan Plan) (*Result, error) {
	if _, err := Waves(plan); err != nil {
		s.logger.Error("Plan rejected before execution.", "error", err)
		s.observer.RunFinished(ctx, nil, err)
		return nil, err
	}

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	steps := make(map[int]Step, len(plan.Steps))
	pending := make(map[int]Step, len(plan.Steps))
	for _, st := range plan.Steps {
		steps[st.ID] = st
		pending[st.ID] = st
	}
	completed := make(map[int]ExecutionRecord, len(plan.Steps))
	res := &Result{}

	s.logger.Info("Starting run.", "steps", len(plan.Steps), "policy", s.opts.Policy.String())

	for wave := 0; len(pending) > 0; wave++ {
		ready := readyIDs(pending, func(id int) bool {
			_, ok := completed[id]
			return ok
		})
		if len(ready) == 0 {
			err := &UnresolvableError{Pending: sortedKeys(pending)}
			s.logger.Error("No runnable steps left.", "pending", err.Pending)
			s.observer.RunFinished(ctx, nil, err)
			return nil, err
		}

		s.logger.Debug("Dispatching wave.", "wave", wave, "steps", ready)
		s.observer.WaveStarted(ctx, wave, ready)

		records, ran, waveErr := s.runWave(ctx, ready, steps, completed)

		// Fold in ascending id order. Only this goroutine touches completed and pending.
		for i, id := range ready {
			if !ran[i] {
				continue
			}
			completed[id] = records[i]
			delete(pending, id)
		}
		res.Waves = append(res.Waves, ready)

		if waveErr != nil {
			s.logger.Warn("Stopping run after failed wave.", "wave", wave, "error", waveErr)
			s.finish(res, plan, completed)
			s.observer.RunFinished(ctx, res, waveErr)
			return res, waveErr
		}
	}

	s.finish(res, plan, completed)
	s.logger.Info("Run finished.", "waves", len(res.Waves), "records", len(res.Records))
	s.observer.RunFinished(ctx, res, nil)
	return res, nil
}

func (s *Scheduler) finish(res *Result, plan Plan, completed map[int]ExecutionRecord) {
	for _, st := range plan.Steps {
		if rec, ok := completed[st.ID]; ok {
			res.Records = append(res.Records, rec)
		}
	}
	res.Combined = Combine(res.Records)
}

// runWave dispatches every ready step and waits for all of them. ran[i] is false for
// steps that were never started because a FailFast sibling had already failed.
func (s *Scheduler) runWave(ctx context.Context, ready []int, steps map[int]Step, completed map[int]ExecutionRecord) ([]ExecutionRecord, []bool, error) {
	tasks := make([]string, len(ready))
	for i, id := range ready {
		tasks[i] = EffectiveTask(steps[id], completed)
	}

	records := make([]ExecutionRecord, len(ready))
	ran := make([]bool, len(ready))

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.MaxParallel > 0 {
		g.SetLimit(s.opts.MaxParallel)
	}

	for i, id := range ready {
		step := steps[id]
		task := tasks[i]
		g.Go(func() error {
			if s.opts.Policy == FailFast && gctx.Err() != nil {
				return nil
			}
			rec := s.invoke(gctx, step, task)
			records[i] = rec
			ran[i] = true
			s.observer.StepFinished(gctx, rec)
			if rec.Failed() && s.opts.Policy == FailFast {
				return &StepFailedError{StepID: rec.StepID, Worker: rec.Worker, Reason: rec.Error}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil && slices.Contains(ran, false) {
		// The run context ended before these steps could start.
		err = fmt.Errorf("run cancelled: %w", ctx.Err())
	}
	return records, ran, err
}

func (s *Scheduler) invoke(ctx context.Context, step Step, task string) (rec ExecutionRecord) {
	rec = ExecutionRecord{StepID: step.ID, Worker: step.Worker, Task: step.Task}

	if s.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.StepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			rec.Output = ""
			rec.Error = fmt.Sprintf("worker panicked: %v", r)
			s.logger.Error("Worker panicked.", "step", step.ID, "worker", step.Worker, "panic", r)
		}
	}()

	start := time.Now()
	out, err := s.invoker.Invoke(ctx, step.Worker, task)
	if err != nil {
		rec.Error = err.Error()
		s.logger.Warn("Step failed.", "step", step.ID, "worker", step.Worker, "error", err, "duration", time.Since(start))
		return rec
	}
	rec.Output = out
	s.logger.Debug("Step completed.", "step", step.ID, "worker", step.Worker, "duration", time.Since(start))
	return rec
}
