package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/agent"
	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/governance"
	"github.com/rahul/switchboard/internal/observability"
	"github.com/rahul/switchboard/internal/store"
	"github.com/rahul/switchboard/internal/tools"
	"github.com/rahul/switchboard/pkg/config"
)

// app is everything main needs after wiring.
type app struct {
	conductor *agent.Conductor
	react     *agent.ReActLoop
	history   *store.HistoryStore
	browser   *tools.BrowserTool
	trace     *observability.Logger
	status    *observability.Status
}

func (a *app) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("closing history store", "error", err)
		}
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, trace *observability.Logger) (*app, error) {
	a := &app{trace: trace, status: observability.NewStatus()}
	tracker := &observability.Tracker{Log: trace, Status: a.status}

	providerName, providerCfg := cfg.GetDefaultProvider()
	if providerName == "" {
		return nil, errors.New("no enabled provider found in config")
	}
	modelFor := func(kind agent.Kind, w config.WorkerConfig) (llms.Model, error) {
		return agent.NewModel(ctx, providerName, providerCfg, w.Model)
	}

	box := agent.Toolbox{
		Scraper:   tools.NewScraperTool(),
		Browser:   tools.NewBrowserTool(),
		Weather:   tools.NewWeatherTool(),
		Code:      tools.NewCodeTool(),
		Workspace: tools.NewWorkspace(cfg.App.Workspace),
	}
	a.browser = box.Browser
	if search, err := tools.NewSearchTool(5); err != nil {
		logger.Warn("search tool unavailable", "error", err)
	} else {
		box.Search = search
	}

	prompts := agent.NewPromptManager(cfg.App.Prompts)

	summaryModel, err := modelFor(agent.KindWebSearch, cfg.Worker(string(agent.KindWebSearch)))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("summarizer model: %w", err)
	}
	// Summaries log through the run's logger, tagged with the chat.
	summarizer := &agent.Summarizer{Model: summaryModel}

	workers, err := agent.NewWorkers(cfg, agent.WorkerDeps{
		Models:     modelFor,
		Toolbox:    box,
		Prompts:    prompts,
		Summarizer: summarizer,
		Observer:   tracker,
		Trace:      trace,
		Logger:     logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	policy, err := governance.FromConfig(cfg.Governance)
	if err != nil {
		a.Close()
		return nil, err
	}
	dispatcher := agent.NewDispatcher(workers,
		agent.WithPolicy(policy),
		agent.WithTrace(trace),
		agent.WithDispatchLogger(logger),
	)

	failure, err := engine.ParsePolicy(cfg.Engine.FailurePolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	scheduler := engine.New(dispatcher, engine.Options{
		Policy:      failure,
		MaxParallel: cfg.Engine.MaxParallel,
		StepTimeout: cfg.Engine.StepTimeout.Std(),
		RunTimeout:  cfg.Engine.RunTimeout.Std(),
		Observer:    tracker,
		Logger:      logger,
	})

	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.history = history

	planner, err := newPlanner(cfg, modelFor, prompts, history, dispatcher.Available(), trace)
	if err != nil {
		a.Close()
		return nil, err
	}

	reactModel, err := modelFor("react", config.WorkerConfig{Model: cfg.Planner.Model})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("react model: %w", err)
	}
	a.react = &agent.ReActLoop{
		Model:     reactModel,
		Scheduler: scheduler,
		Kinds:     dispatcher.Available(),
		Trace:     trace,
		Logger:    logger,
	}

	a.conductor = &agent.Conductor{
		Planner:   planner,
		Scheduler: scheduler,
		History:   history,
		Trace:     trace,
		Status:    a.status,
		Logger:    logger,
	}
	return a, nil
}

func newPlanner(cfg *config.Config, modelFor agent.ModelFor, prompts *agent.PromptManager, history agent.HistoryReader, kinds []agent.Kind, trace *observability.Logger) (agent.Planner, error) {
	switch cfg.Planner.Mode {
	case "rules":
		return agent.NewRulePlanner(), nil
	case "file":
		return &agent.FilePlanner{Path: cfg.Planner.PlanFile}, nil
	}

	settings := config.WorkerConfig{Model: cfg.Planner.Model, MaxTokens: 1000}
	model, err := modelFor("planner", settings)
	if err != nil {
		return nil, fmt.Errorf("planner model: %w", err)
	}
	return &agent.LLMPlanner{
		Model:        model,
		Settings:     settings,
		Prompts:      prompts,
		History:      history,
		HistoryLimit: cfg.Planner.History,
		Kinds:        kinds,
		Trace:        trace,
	}, nil
}
