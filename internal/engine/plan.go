package engine

import (
	"fmt"
	"slices"
)

// Step is one unit of planned work: a worker name and the task it should perform.
// ID is the step's stable position in the plan.
type Step struct {
	ID        int    `json:"id" yaml:"id"`
	Worker    string `json:"worker" yaml:"worker"`
	Task      string `json:"task" yaml:"task"`
	DependsOn []int  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Plan is an ordered list of steps. Declaration order is used only when assembling
// the combined output; execution order is driven by DependsOn.
type Plan struct {
	Steps []Step `json:"steps" yaml:"steps"`
}

// IDs returns the step ids in declaration order.
func (p Plan) IDs() []int {
	ids := make([]int, 0, len(p.Steps))
	for _, s := range p.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

// Validate rejects plans whose step ids are not unique. Missing or cyclic dependencies
// are reported by Waves and by the scheduler as ErrGraphUnresolvable.
func (p Plan) Validate() error {
	seen := make(map[int]struct{}, len(p.Steps))
	for _, s := range p.Steps {
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %d", ErrInvalidPlan, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Waves groups step ids into the level sets the scheduler will execute: wave 0 holds
// every step without dependencies, wave n every step whose dependencies all sit in
// earlier waves. Ids inside a wave are ascending. A plan whose remaining steps can
// never become ready returns an *UnresolvableError.
func Waves(p Plan) ([][]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	done := make(map[int]bool, len(p.Steps))
	pending := make(map[int]Step, len(p.Steps))
	for _, s := range p.Steps {
		pending[s.ID] = s
	}

	var waves [][]int
	for len(pending) > 0 {
		ready := readyIDs(pending, func(id int) bool { return done[id] })
		if len(ready) == 0 {
			return waves, &UnresolvableError{Pending: sortedKeys(pending)}
		}
		for _, id := range ready {
			done[id] = true
			delete(pending, id)
		}
		waves = append(waves, ready)
	}
	return waves, nil
}

// readyIDs returns, ascending, the pending ids whose dependencies all satisfy isDone.
func readyIDs(pending map[int]Step, isDone func(int) bool) []int {
	var ready []int
	for id, s := range pending {
		ok := true
		for _, dep := range s.DependsOn {
			if !isDone(dep) {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)
	return ready
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
