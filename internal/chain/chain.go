// Package chain runs an ordered list of primitive operations, feeding each
// operation's result into the next one through the Previous placeholder.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// previousToken is the wire spelling of the placeholder. Matching is case-insensitive.
const previousToken = "previous"

// Arg is either a literal value or a reference to the previous operation's output.
type Arg struct {
	value    any
	previous bool
}

// Literal returns an argument carrying v as-is. Literal("previous") is the word
// "previous", not the placeholder.
func Literal(v any) Arg { return Arg{value: v} }

// Previous returns the placeholder for the preceding operation's output.
func Previous() Arg { return Arg{previous: true} }

// IsPrevious reports whether the argument is the placeholder.
func (a Arg) IsPrevious() bool { return a.previous }

// Value returns the literal value. It is nil for the placeholder.
func (a Arg) Value() any { return a.value }

func (a Arg) resolve(last any) any {
	if a.previous {
		return last
	}
	return a.value
}

func (a Arg) String() string {
	if a.previous {
		return "<previous>"
	}
	return fmt.Sprintf("%v", a.value)
}

// MarshalJSON writes the placeholder as the string "previous".
func (a Arg) MarshalJSON() ([]byte, error) {
	if a.previous {
		return json.Marshal(previousToken)
	}
	return json.Marshal(a.value)
}

// UnmarshalJSON decodes any JSON value into a literal, except the string "previous"
// in any letter case, which becomes the placeholder.
func (a *Arg) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), previousToken) {
		*a = Previous()
		return nil
	}
	*a = Literal(v)
	return nil
}

// Operation names a capability and the arguments to call it with.
type Operation struct {
	Name      string `json:"tool"`
	Args      []Arg  `json:"args"`
	Rationale string `json:"reasoning,omitempty"`
}

// Op is shorthand for building an Operation in code.
func Op(name string, args ...Arg) Operation {
	return Operation{Name: name, Args: args}
}

// Entry is one successful operation in a trace, with its arguments as resolved.
type Entry struct {
	Operation string `json:"operation"`
	Args      []any  `json:"resolved_args"`
	Output    any    `json:"output"`
	Rationale string `json:"reasoning,omitempty"`
}

// Trace is the outcome of a chain run. Log stops at the first failing operation.
type Trace struct {
	Output any     `json:"output"`
	Log    []Entry `json:"log"`
}

// Capability is a primitive operation. It receives fully resolved arguments.
type Capability func(ctx context.Context, args []any) (any, error)

// Table maps operation names to capabilities. It is built by the owner of a worker
// and never shared through package state.
type Table map[string]Capability

// Names returns the operation names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
