package chain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Observer is notified after every operation attempt. err is nil on success.
type Observer interface {
	OperationFinished(ctx context.Context, index int, entry Entry, err error)
}

// Interpreter executes operation chains against a capability table.
type Interpreter struct {
	table    Table
	logger   *slog.Logger
	observer Observer
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the interpreter's logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) { in.logger = l }
}

// WithObserver registers an observer for operation results.
func WithObserver(o Observer) Option {
	return func(in *Interpreter) { in.observer = o }
}

// NewInterpreter creates an interpreter bound to table.
func NewInterpreter(table Table, opts ...Option) *Interpreter {
	in := &Interpreter{table: table, logger: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run executes ops in order. The returned trace is never nil; on failure it holds the
// operations that succeeded and the error is an *OperationError. An empty chain
// succeeds with a nil output.
func (in *Interpreter) Run(ctx context.Context, ops []Operation) (*Trace, error) {
	trace := &Trace{Log: make([]Entry, 0, len(ops))}
	var last any

	for i, op := range ops {
		args := make([]any, len(op.Args))
		for j, a := range op.Args {
			args[j] = a.resolve(last)
		}

		capability, ok := in.table[op.Name]
		if !ok {
			return trace, in.fail(ctx, trace, &OperationError{Kind: ErrUnknownOperation, Index: i, Name: op.Name, Args: args})
		}
		if err := ctx.Err(); err != nil {
			return trace, in.fail(ctx, trace, &OperationError{Kind: ErrOperationFailed, Index: i, Name: op.Name, Args: args, Err: err})
		}

		out, err := call(ctx, capability, args)
		if err != nil {
			return trace, in.fail(ctx, trace, &OperationError{Kind: ErrOperationFailed, Index: i, Name: op.Name, Args: args, Err: err})
		}

		entry := Entry{Operation: op.Name, Args: args, Output: out, Rationale: op.Rationale}
		trace.Log = append(trace.Log, entry)
		last = out

		in.logger.Debug("Operation completed.", "index", i, "operation", op.Name, "args", args, "output", out)
		if in.observer != nil {
			in.observer.OperationFinished(ctx, i, entry, nil)
		}
	}

	trace.Output = last
	return trace, nil
}

func (in *Interpreter) fail(ctx context.Context, trace *Trace, err *OperationError) error {
	err.Log = slices.Clone(trace.Log)
	in.logger.Warn("Chain stopped.", "index", err.Index, "operation", err.Name, "error", err)
	if in.observer != nil {
		in.observer.OperationFinished(ctx, err.Index, Entry{Operation: err.Name, Args: err.Args}, err)
	}
	return err
}

func call(ctx context.Context, capability Capability, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return capability(ctx, args)
}
