package tools

import (
	"context"
	"strings"
	"unicode"
)

// TextSet returns the string-inspection capabilities.
func TextSet() Set {
	return Set{
		{
			Name:        "word_count",
			Description: "Count whitespace-separated words in a text.",
			Params:      []string{"text"},
			Fn:          unaryText(func(s string) any { return len(strings.Fields(s)) }),
		},
		{
			Name:        "letter_count",
			Description: "Count alphabetic characters in a text.",
			Params:      []string{"text"},
			Fn: unaryText(func(s string) any {
				n := 0
				for _, r := range s {
					if unicode.IsLetter(r) {
						n++
					}
				}
				return n
			}),
		},
		{
			Name:        "to_upper",
			Description: "Convert a text to upper case.",
			Params:      []string{"text"},
			Fn:          unaryText(func(s string) any { return strings.ToUpper(s) }),
		},
		{
			Name:        "to_lower",
			Description: "Convert a text to lower case.",
			Params:      []string{"text"},
			Fn:          unaryText(func(s string) any { return strings.ToLower(s) }),
		},
	}
}

func unaryText(fn func(string) any) func(context.Context, []any) (any, error) {
	return func(ctx context.Context, args []any) (any, error) {
		if err := wantArgs(args, 1, 1); err != nil {
			return nil, err
		}
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}
