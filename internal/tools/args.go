package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

func wantArgs(args []any, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		if max < 0 {
			return fmt.Errorf("expected at least %d arguments, got %d", min, len(args))
		}
		if min == max {
			return fmt.Errorf("expected %d argument(s), got %d", min, len(args))
		}
		return fmt.Errorf("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func toNumber(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing number")
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

func numberArg(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("argument %d is missing", i+1)
	}
	f, err := toNumber(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return f, nil
}

func intArg(args []any, i int) (int, error) {
	f, err := numberArg(args, i)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %d: %v is not a whole number", i+1, f)
	}
	return int(f), nil
}

// stringArg accepts any scalar and renders it as text, since chained outputs are
// often numbers or maps rather than strings.
func stringArg(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("argument %d is missing", i+1)
	}
	switch x := args[i].(type) {
	case string:
		return x, nil
	case nil:
		return "", fmt.Errorf("argument %d is empty", i+1)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), nil
		}
		return string(b), nil
	}
}

func optionalInt(args []any, i, def int) (int, error) {
	if i >= len(args) || args[i] == nil {
		return def, nil
	}
	return intArg(args, i)
}
