package engine

import (
	"fmt"
	"slices"
	"strings"
)

const (
	contextHeader = "Context from previous steps:"
	// NoResults is the combined output when no step produced a usable result.
	NoResults      = "No results"
	combinedJoiner = " | "
)

// ExecutionRecord is the outcome of running one step. Task is the step's original task,
// never the context-augmented one sent to the worker.
type ExecutionRecord struct {
	StepID int    `json:"step_id"`
	Worker string `json:"worker"`
	Task   string `json:"task"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the step ended with an error.
func (r ExecutionRecord) Failed() bool { return r.Error != "" }

// Result is what a scheduler run produces.
type Result struct {
	Records  []ExecutionRecord `json:"records"`
	Combined string            `json:"combined"`
	Waves    [][]int           `json:"waves"`
}

// Record returns the record for a step id.
func (r *Result) Record(id int) (ExecutionRecord, bool) {
	for _, rec := range r.Records {
		if rec.StepID == id {
			return rec, true
		}
	}
	return ExecutionRecord{}, false
}

// EffectiveTask prepends the outputs of a step's dependencies to its task.
// Dependencies are listed in ascending id order so the text does not depend on
// which dependency happened to finish first.
func EffectiveTask(step Step, completed map[int]ExecutionRecord) string {
	if len(step.DependsOn) == 0 {
		return step.Task
	}

	deps := slices.Clone(step.DependsOn)
	slices.Sort(deps)
	deps = slices.Compact(deps)

	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n")
	for _, id := range deps {
		rec, ok := completed[id]
		if !ok {
			continue
		}
		if rec.Failed() {
			fmt.Fprintf(&b, "Step %d (%s) failed: %s\n", rec.StepID, rec.Worker, rec.Error)
			continue
		}
		fmt.Fprintf(&b, "Step %d (%s): %s\n", rec.StepID, rec.Worker, rec.Output)
	}
	b.WriteString("\nTask: ")
	b.WriteString(step.Task)
	return b.String()
}

// Combine joins successful outputs as "<worker>: <output>" in the order given.
func Combine(records []ExecutionRecord) string {
	var parts []string
	for _, rec := range records {
		if rec.Failed() || rec.Output == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", rec.Worker, rec.Output))
	}
	if len(parts) == 0 {
		return NoResults
	}
	return strings.Join(parts, combinedJoiner)
}
