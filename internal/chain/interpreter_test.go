package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intArgs(args []any) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("want 2 args, got %d", len(args))
	}
	a, ok := args[0].(int)
	if !ok {
		return 0, 0, fmt.Errorf("arg 0: want int, got %T", args[0])
	}
	b, ok := args[1].(int)
	if !ok {
		return 0, 0, fmt.Errorf("arg 1: want int, got %T", args[1])
	}
	return a, b, nil
}

type countingTable struct {
	calls map[string]int
}

func (c *countingTable) table() Table {
	c.calls = map[string]int{}
	wrap := func(name string, fn func(a, b int) (any, error)) Capability {
		return func(ctx context.Context, args []any) (any, error) {
			c.calls[name]++
			a, b, err := intArgs(args)
			if err != nil {
				return nil, err
			}
			return fn(a, b)
		}
	}
	return Table{
		"add":      wrap("add", func(a, b int) (any, error) { return a + b, nil }),
		"multiply": wrap("multiply", func(a, b int) (any, error) { return a * b, nil }),
		"divide": wrap("divide", func(a, b int) (any, error) {
			if b == 0 {
				return nil, errors.New("division by zero")
			}
			return a / b, nil
		}),
		"explode": func(ctx context.Context, args []any) (any, error) {
			c.calls["explode"]++
			panic("kaboom")
		},
	}
}

func newTestInterpreter(t Table, opts ...Option) *Interpreter {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewInterpreter(t, opts...)
}

func TestRun_ThreadsPreviousResult(t *testing.T) {
	ct := &countingTable{}
	in := newTestInterpreter(ct.table())

	trace, err := in.Run(context.Background(), []Operation{
		Op("add", Literal(2), Literal(3)),
		Op("multiply", Previous(), Literal(5)),
	})
	require.NoError(t, err)
	assert.Equal(t, 25, trace.Output)

	want := []Entry{
		{Operation: "add", Args: []any{2, 3}, Output: 5},
		{Operation: "multiply", Args: []any{5, 5}, Output: 25},
	}
	if diff := cmp.Diff(want, trace.Log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_UnknownOperationStopsChain(t *testing.T) {
	ct := &countingTable{}
	in := newTestInterpreter(ct.table())

	trace, err := in.Run(context.Background(), []Operation{
		Op("add", Literal(1), Literal(1)),
		Op("teleport", Previous()),
		Op("multiply", Previous(), Literal(3)),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOperation))
	assert.False(t, errors.Is(err, ErrOperationFailed))

	require.NotNil(t, trace)
	require.Len(t, trace.Log, 1)
	assert.Equal(t, "add", trace.Log[0].Operation)
	assert.Zero(t, ct.calls["multiply"], "nothing after the failure may run")

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Index)
	assert.Equal(t, "teleport", opErr.Name)
	assert.Equal(t, []any{2}, opErr.Args)
	assert.Len(t, opErr.Log, 1)
	assert.Equal(t, `unknown operation "teleport" at position 1`, err.Error())
}

func TestRun_CapabilityErrorIsOperationFailed(t *testing.T) {
	ct := &countingTable{}
	in := newTestInterpreter(ct.table())

	trace, err := in.Run(context.Background(), []Operation{
		Op("add", Literal(4), Literal(0)),
		Op("divide", Literal(1), Literal(0)),
		Op("add", Previous(), Literal(1)),
	})
	require.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "division by zero")
	assert.Len(t, trace.Log, 1)
	assert.Equal(t, 1, ct.calls["add"])
	assert.Nil(t, trace.Output)
}

func TestRun_PanicIsOperationFailed(t *testing.T) {
	ct := &countingTable{}
	in := newTestInterpreter(ct.table())

	trace, err := in.Run(context.Background(), []Operation{Op("explode")})
	require.ErrorIs(t, err, ErrOperationFailed)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Empty(t, trace.Log)
}

func TestRun_CancelledContext(t *testing.T) {
	ct := &countingTable{}
	in := newTestInterpreter(ct.table())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.Run(ctx, []Operation{Op("add", Literal(1), Literal(2))})
	require.ErrorIs(t, err, ErrOperationFailed)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ct.calls["add"])
}

func TestRun_EmptyChain(t *testing.T) {
	trace, err := newTestInterpreter(Table{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, trace.Output)
	assert.Empty(t, trace.Log)
}

func TestRun_LeadingPreviousResolvesToNil(t *testing.T) {
	var got []any
	table := Table{"echo": func(ctx context.Context, args []any) (any, error) {
		got = args
		return "ok", nil
	}}
	_, err := newTestInterpreter(table).Run(context.Background(), []Operation{Op("echo", Previous(), Literal("previous"))})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, "previous"}, got)
}

type opRecorder struct {
	names []string
	errs  int
}

func (r *opRecorder) OperationFinished(_ context.Context, _ int, e Entry, err error) {
	r.names = append(r.names, e.Operation)
	if err != nil {
		r.errs++
	}
}

func TestRun_NotifiesObserver(t *testing.T) {
	ct := &countingTable{}
	rec := &opRecorder{}
	in := newTestInterpreter(ct.table(), WithObserver(rec))

	_, err := in.Run(context.Background(), []Operation{
		Op("add", Literal(1), Literal(2)),
		Op("nope"),
	})
	require.Error(t, err)
	assert.Equal(t, []string{"add", "nope"}, rec.names)
	assert.Equal(t, 1, rec.errs)
}

func TestTableNames(t *testing.T) {
	ct := &countingTable{}
	assert.Equal(t, []string{"add", "divide", "explode", "multiply"}, ct.table().Names())
}
