package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rahul/switchboard/internal/llmtext"
)

type wireOperation struct {
	Tool      string `json:"tool"`
	Operation string `json:"operation"`
	Args      []Arg  `json:"args"`
	Reasoning string `json:"reasoning"`
}

// Parse decodes a model-written chain. It accepts a bare JSON array of
// {"tool", "args", "reasoning"} objects, optionally wrapped in a code fence or prose,
// or an object holding that array under "steps", "chain" or "operations".
func Parse(raw string) ([]Operation, error) {
	text := llmtext.StripFences(raw)

	var wire []wireOperation
	if arr := llmtext.Extract(text, '['); arr != "" && !startsWithObject(text) {
		if err := json.Unmarshal([]byte(arr), &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedChain, err)
		}
	} else if obj := llmtext.Extract(text, '{'); obj != "" {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal([]byte(obj), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedChain, err)
		}
		found := false
		for _, key := range []string{"steps", "chain", "operations"} {
			if body, ok := wrapped[key]; ok {
				if err := json.Unmarshal(body, &wire); err != nil {
					return nil, fmt.Errorf("%w: %s: %v", ErrMalformedChain, key, err)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no operation list in reply", ErrMalformedChain)
		}
	} else {
		return nil, fmt.Errorf("%w: no JSON in reply", ErrMalformedChain)
	}

	ops := make([]Operation, 0, len(wire))
	for i, w := range wire {
		name := strings.TrimSpace(w.Tool)
		if name == "" {
			name = strings.TrimSpace(w.Operation)
		}
		if name == "" {
			return nil, fmt.Errorf("%w: operation %d has no name", ErrMalformedChain, i)
		}
		ops = append(ops, Operation{Name: name, Args: w.Args, Rationale: w.Reasoning})
	}
	return ops, nil
}

func startsWithObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{")
}

// Format renders an operation output as text. Whole numbers print without a
// fractional part, strings verbatim, and everything else as JSON.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// formatFloat prints whole floats below 2^63 with every digit, so large powers
// reach the next step exactly.
func formatFloat(f float64) string {
	if f == 0 {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
