package tools

import (
	"fmt"
	"strings"

	"github.com/rahul/switchboard/internal/chain"
)

// Capability is one primitive a chain worker may call. Params names the positional
// arguments so the planning prompt can describe them.
type Capability struct {
	Name        string
	Description string
	Params      []string
	Fn          chain.Capability
}

// Set is the ordered list of capabilities available to one worker.
type Set []Capability

// Table builds the interpreter's lookup table.
func (s Set) Table() chain.Table {
	t := make(chain.Table, len(s))
	for _, c := range s {
		t[c.Name] = c.Fn
	}
	return t
}

// Get returns the capability with the given name.
func (s Set) Get(name string) (Capability, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// Describe renders one "- name(params): description" line per capability.
func (s Set) Describe() string {
	lines := make([]string, 0, len(s))
	for _, c := range s {
		lines = append(lines, fmt.Sprintf("- %s(%s): %s", c.Name, strings.Join(c.Params, ", "), c.Description))
	}
	return strings.Join(lines, "\n")
}

// Merge concatenates sets. Later duplicates of a name are dropped.
func Merge(sets ...Set) Set {
	seen := map[string]bool{}
	var out Set
	for _, s := range sets {
		for _, c := range s {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	return out
}
