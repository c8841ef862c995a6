package store

import (
	"time"

	"github.com/rahul/switchboard/internal/engine"
)

// Run is one persisted plan execution.
type Run struct {
	ID        int64
	ChatID    string
	Request   string
	Plan      engine.Plan
	Waves     [][]int
	Combined  string
	Error     string // run-level error, empty when the run finished
	Records   []engine.ExecutionRecord
	CreatedAt time.Time
}

// Succeeded reports whether the run finished and no step failed.
func (r *Run) Succeeded() bool {
	if r.Error != "" {
		return false
	}
	for _, rec := range r.Records {
		if rec.Failed() {
			return false
		}
	}
	return true
}
