package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// MathSet returns the arithmetic capabilities.
func MathSet() Set {
	return Set{
		{
			Name:        "add",
			Description: "Add two or more numbers.",
			Params:      []string{"a", "b", "..."},
			Fn: func(ctx context.Context, args []any) (any, error) {
				return fold(args, 0, func(acc, x float64) (float64, error) { return acc + x, nil })
			},
		},
		{
			Name:        "subtract",
			Description: "Subtract b from a.",
			Params:      []string{"a", "b"},
			Fn:          binary(func(a, b float64) (float64, error) { return a - b, nil }),
		},
		{
			Name:        "multiply",
			Description: "Multiply two or more numbers.",
			Params:      []string{"a", "b", "..."},
			Fn: func(ctx context.Context, args []any) (any, error) {
				return fold(args, 1, func(acc, x float64) (float64, error) { return acc * x, nil })
			},
		},
		{
			Name:        "divide",
			Description: "Divide a by b.",
			Params:      []string{"a", "b"},
			Fn: binary(func(a, b float64) (float64, error) {
				if b == 0 {
					return 0, errors.New("division by zero")
				}
				return a / b, nil
			}),
		},
		{
			Name:        "power",
			Description: "Raise base to exponent.",
			Params:      []string{"base", "exponent"},
			Fn: binary(func(a, b float64) (float64, error) {
				r := math.Pow(a, b)
				if math.IsNaN(r) || math.IsInf(r, 0) {
					return 0, fmt.Errorf("%v ** %v is not a finite number", a, b)
				}
				return r, nil
			}),
		},
		{
			Name:        "factorial",
			Description: "Factorial of a whole number between 0 and 170.",
			Params:      []string{"n"},
			Fn: func(ctx context.Context, args []any) (any, error) {
				if err := wantArgs(args, 1, 1); err != nil {
					return nil, err
				}
				n, err := intArg(args, 0)
				if err != nil {
					return nil, err
				}
				if n < 0 || n > 170 {
					return nil, fmt.Errorf("factorial of %d is out of range", n)
				}
				r := 1.0
				for i := 2; i <= n; i++ {
					r *= float64(i)
				}
				return r, nil
			},
		},
	}
}

func binary(fn func(a, b float64) (float64, error)) func(context.Context, []any) (any, error) {
	return func(ctx context.Context, args []any) (any, error) {
		if err := wantArgs(args, 2, 2); err != nil {
			return nil, err
		}
		a, err := numberArg(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := numberArg(args, 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	}
}

func fold(args []any, start float64, fn func(acc, x float64) (float64, error)) (any, error) {
	if err := wantArgs(args, 2, -1); err != nil {
		return nil, err
	}
	acc := start
	for i := range args {
		x, err := numberArg(args, i)
		if err != nil {
			return nil, err
		}
		if acc, err = fn(acc, x); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
