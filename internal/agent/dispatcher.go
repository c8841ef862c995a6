package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/governance"
	"github.com/rahul/switchboard/internal/observability"
)

// Dispatcher routes plan steps to workers. It is the scheduler's Invoker.
type Dispatcher struct {
	workers map[Kind]Worker
	policy  governance.PolicyEngine
	trace   *observability.Logger
	logger  *slog.Logger
}

var _ engine.Invoker = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPolicy checks every step against a policy engine before it runs.
func WithPolicy(p governance.PolicyEngine) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// WithTrace records policy decisions to the event log.
func WithTrace(l *observability.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.trace = l }
}

func WithDispatchLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a dispatcher over workers. Kinds without a worker are treated
// as unknown.
func NewDispatcher(workers map[Kind]Worker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{workers: workers, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Available lists the kinds that have a worker, in planner order.
func (d *Dispatcher) Available() []Kind {
	var out []Kind
	for _, k := range Kinds() {
		if d.workers[k] != nil {
			out = append(out, k)
		}
	}
	return out
}

func (d *Dispatcher) Invoke(ctx context.Context, worker, task string) (string, error) {
	kind, err := ParseKind(worker)
	if err != nil {
		return "", err
	}

	if d.policy != nil {
		res, err := d.policy.Evaluate(ctx, governance.Request{Worker: string(kind), Task: task, ChatID: observability.ChatFrom(ctx)})
		if err != nil {
			return "", fmt.Errorf("policy check: %w", err)
		}
		d.trace.LogPolicy(observability.ChatFrom(ctx), string(kind), string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			return "", fmt.Errorf("%w: %s", ErrPolicyDenied, res.Reason)
		}
	}

	w := d.workers[kind]
	if w == nil {
		return "", engine.UnknownWorkerError(worker)
	}

	d.logger.Debug("dispatching step", "worker", kind, "chat_id", observability.ChatFrom(ctx))
	return w.Run(ctx, task)
}
