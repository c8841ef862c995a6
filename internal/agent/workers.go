package agent

import (
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/chain"
	"github.com/rahul/switchboard/internal/observability"
	"github.com/rahul/switchboard/internal/tools"
	"github.com/rahul/switchboard/pkg/config"
)

// Toolbox holds the capability providers shared by the chain workers. Nil members
// leave their capabilities out, which tests and restricted deployments rely on.
type Toolbox struct {
	Search    *tools.SearchTool
	Scraper   *tools.ScraperTool
	Browser   *tools.BrowserTool
	Weather   *tools.WeatherTool
	Code      *tools.CodeTool
	Workspace *tools.Workspace
}

// Capabilities returns the capability set of a chain worker kind, or nil for kinds
// that do not run chains.
func (b Toolbox) Capabilities(kind Kind) tools.Set {
	switch kind {
	case KindMath:
		return tools.MathSet()
	case KindString:
		return tools.TextSet()
	case KindWebSearch:
		var sets []tools.Set
		if b.Search != nil {
			sets = append(sets, b.Search.Capabilities())
		}
		if b.Scraper != nil {
			sets = append(sets, b.Scraper.Capabilities())
		}
		if b.Browser != nil {
			sets = append(sets, b.Browser.Capabilities())
		}
		return tools.Merge(sets...)
	case KindWeather:
		if b.Weather != nil {
			return b.Weather.Capabilities()
		}
	case KindCode:
		var sets []tools.Set
		if b.Code != nil {
			sets = append(sets, b.Code.Capabilities())
		}
		if b.Workspace != nil {
			sets = append(sets, b.Workspace.Capabilities())
		}
		return tools.Merge(sets...)
	}
	return nil
}

// ModelFor returns the model to use for a worker's settings.
type ModelFor func(kind Kind, w config.WorkerConfig) (llms.Model, error)

// WorkerDeps are the shared collaborators handed to every worker.
type WorkerDeps struct {
	Models     ModelFor
	Toolbox    Toolbox
	Prompts    *PromptManager
	Summarizer *Summarizer
	Observer   chain.Observer
	Trace      *observability.Logger
	Logger     *slog.Logger
}

// NewWorkers builds one worker per enabled kind. Chain kinds whose capability set is
// empty are skipped, so their steps fail as unknown workers.
func NewWorkers(cfg *config.Config, deps WorkerDeps) (map[Kind]Worker, error) {
	workers := make(map[Kind]Worker)
	for _, kind := range Kinds() {
		settings := cfg.Worker(string(kind))
		if settings.Disabled {
			continue
		}
		set := deps.Toolbox.Capabilities(kind)
		chainKind := kind != KindWriter && kind != KindEditor
		if chainKind && len(set) == 0 {
			continue
		}
		model, err := deps.Models(kind, settings)
		if err != nil {
			return nil, fmt.Errorf("model for %s worker: %w", kind, err)
		}

		if !chainKind {
			w, err := NewTextWorker(kind, model, settings, deps.Prompts)
			if err != nil {
				return nil, err
			}
			w.Trace = deps.Trace
			workers[kind] = w
		} else {
			w, err := NewChainWorker(kind, model, settings, set, deps.Prompts)
			if err != nil {
				return nil, err
			}
			w.Summarizer = deps.Summarizer
			w.Observer = deps.Observer
			w.Trace = deps.Trace
			w.Logger = deps.Logger
			workers[kind] = w
		}
	}
	return workers, nil
}
