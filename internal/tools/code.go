package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

func init() {
	// Scripts written by a model read like Python: loops at top level, rebinding
	// globals and recursion are all common.
	resolve.AllowGlobalReassign = true
	resolve.AllowRecursion = true
	resolve.AllowSet = true
}

const (
	defaultCodeTimeout = 10 * time.Second
	defaultMaxSteps    = 10_000_000
)

// CodeTool runs Starlark, a deterministic Python dialect, in-process. The script
// reports its answer by assigning a global named result; failing that, its printed
// output is returned.
type CodeTool struct {
	Timeout  time.Duration
	MaxSteps uint64
}

func NewCodeTool() *CodeTool {
	return &CodeTool{Timeout: defaultCodeTimeout, MaxSteps: defaultMaxSteps}
}

func (c *CodeTool) Run(ctx context.Context, src string, timeout time.Duration) (any, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty program")
	}
	if timeout <= 0 {
		timeout = c.Timeout
	}

	var mu sync.Mutex
	var printed strings.Builder
	thread := &starlark.Thread{
		Name: "code",
		Print: func(_ *starlark.Thread, msg string) {
			mu.Lock()
			defer mu.Unlock()
			printed.WriteString(msg)
			printed.WriteByte('\n')
		},
	}
	if c.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(c.MaxSteps)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(runCtx, func() { thread.Cancel(runCtx.Err().Error()) })
	defer stop()

	predeclared := starlark.StringDict{
		"math": starlarkmath.Module,
		"json": starlarkjson.Module,
	}

	globals, err := starlark.ExecFile(thread, "main.star", src, predeclared)
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("script failed: %s", evalErr.Backtrace())
		}
		return nil, fmt.Errorf("script failed: %v", err)
	}

	if v, ok := globals["result"]; ok {
		return fromStarlark(v), nil
	}
	out := strings.TrimSpace(printed.String())
	if out == "" {
		return "Script ran successfully with no output.", nil
	}
	return out, nil
}

func fromStarlark(v starlark.Value) any {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return float64(i)
		}
		return x.String()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case *starlark.List:
		out := make([]any, 0, x.Len())
		for i := 0; i < x.Len(); i++ {
			out = append(out, fromStarlark(x.Index(i)))
		}
		return out
	case starlark.Tuple:
		out := make([]any, 0, len(x))
		for _, e := range x {
			out = append(out, fromStarlark(e))
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}
			out[key] = fromStarlark(item[1])
		}
		return out
	default:
		return v.String()
	}
}

func (c *CodeTool) Capabilities() Set {
	return Set{{
		Name: "run_starlark",
		Description: "Execute a Starlark (Python dialect) program. Modules math and json are preloaded " +
			"(no import needed). Assign the answer to a global named result.",
		Params: []string{"code", "timeout_seconds", "description"},
		Fn: func(ctx context.Context, args []any) (any, error) {
			if err := wantArgs(args, 1, 3); err != nil {
				return nil, err
			}
			src, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			secs, err := optionalInt(args, 1, 0)
			if err != nil {
				return nil, err
			}
			return c.Run(ctx, src, time.Duration(secs)*time.Second)
		},
	}}
}
