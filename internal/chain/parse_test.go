package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreviousPlaceholder(t *testing.T) {
	raw := "```json\n" + `[
  {"tool": "add", "args": [2, 3], "reasoning": "sum first"},
  {"tool": "multiply", "args": ["PREVIOUS", 5]},
  {"tool": "label", "args": ["previously", " previous "]}
]` + "\n```"

	ops, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	assert.Equal(t, "add", ops[0].Name)
	assert.Equal(t, "sum first", ops[0].Rationale)
	assert.Equal(t, []Arg{Literal(2.0), Literal(3.0)}, ops[0].Args)

	assert.True(t, ops[1].Args[0].IsPrevious())
	assert.Equal(t, 5.0, ops[1].Args[1].Value())

	assert.False(t, ops[2].Args[0].IsPrevious())
	assert.True(t, ops[2].Args[1].IsPrevious())
}

func TestParse_WrappedAndProse(t *testing.T) {
	ops, err := Parse(`Here is the plan: {"steps": [{"operation": "word_count", "args": ["a b c"]}]}`)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "word_count", ops[0].Name)

	ops, err = Parse(`I will do this: [{"tool": "get_weather", "args": ["Paris"]}] and that's it`)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", ops[0].Name)
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{
		"no json at all",
		`[{"args": [1]}]`,
		`{"answer": 42}`,
		`[1, 2, 3]`,
	} {
		_, err := Parse(raw)
		assert.True(t, errors.Is(err, ErrMalformedChain), raw)
	}
}

func TestParse_RunsEndToEnd(t *testing.T) {
	table := Table{
		"add": func(ctx context.Context, args []any) (any, error) {
			return args[0].(float64) + args[1].(float64), nil
		},
		"multiply": func(ctx context.Context, args []any) (any, error) {
			return args[0].(float64) * args[1].(float64), nil
		},
	}
	ops, err := Parse(`[{"tool":"add","args":[2,3]},{"tool":"multiply","args":["previous",5]}]`)
	require.NoError(t, err)

	trace, err := newTestInterpreter(table).Run(context.Background(), ops)
	require.NoError(t, err)
	assert.Equal(t, "25", Format(trace.Output))
	assert.Equal(t, []any{5.0, 5.0}, trace.Log[1].Args)
}

func TestArgJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal([]Arg{Previous(), Literal("x"), Literal(1.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `["previous", "x", 1.5]`, string(b))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{25.0, "25"},
		{2.5, "2.5"},
		{math.Pow(2, 60), "1152921504606846976"},
		{-math.Pow(2, 55), "-36028797018963968"},
		{-3.0, "-3"},
		{math.Copysign(0, -1), "0"},
		{7, "7"},
		{true, "true"},
		{map[string]any{"temp_c": "12"}, `{"temp_c":"12"}`},
		{[]any{1.0, "a"}, `[1,"a"]`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Format(tc.in), "%v", tc.in)
	}
}
