package observability

import (
	"context"

	"github.com/rahul/switchboard/internal/chain"
	"github.com/rahul/switchboard/internal/engine"
)

// Tracker turns scheduler and interpreter callbacks into trace events and keeps the
// dashboard status current. Either field may be nil.
type Tracker struct {
	Log    *Logger
	Status *Status
}

var (
	_ engine.Observer = (*Tracker)(nil)
	_ chain.Observer  = (*Tracker)(nil)
)

func (t *Tracker) WaveStarted(ctx context.Context, index int, ids []int) {
	if t.Status != nil {
		t.Status.waveStarted(index, len(ids))
	}
	t.Log.Log(Event{
		Type:   EventTypeWave,
		ChatID: ChatFrom(ctx),
		Data:   map[string]any{"wave": index, "steps": ids},
	})
}

func (t *Tracker) StepFinished(ctx context.Context, rec engine.ExecutionRecord) {
	if t.Status != nil {
		t.Status.stepFinished()
	}
	t.Log.Log(Event{
		Type:   EventTypeStep,
		ChatID: ChatFrom(ctx),
		Data:   rec,
	})
}

func (t *Tracker) RunFinished(ctx context.Context, res *engine.Result, err error) {
	data := map[string]any{}
	if res != nil {
		data["combined"] = res.Combined
		data["waves"] = res.Waves
		data["records"] = len(res.Records)
	}
	if err != nil {
		data["error"] = err.Error()
	}
	t.Log.Log(Event{Type: EventTypeRun, ChatID: ChatFrom(ctx), Data: data})
}

func (t *Tracker) OperationFinished(ctx context.Context, index int, entry chain.Entry, err error) {
	data := map[string]any{
		"index":     index,
		"operation": entry.Operation,
		"args":      entry.Args,
		"output":    entry.Output,
	}
	if entry.Rationale != "" {
		data["reasoning"] = entry.Rationale
	}
	if err != nil {
		data["error"] = err.Error()
	}
	t.Log.Log(Event{Type: EventTypeOperation, ChatID: ChatFrom(ctx), Data: data})
}
