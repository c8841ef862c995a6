package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/chain"
	"github.com/rahul/switchboard/internal/observability"
	"github.com/rahul/switchboard/internal/tools"
	"github.com/rahul/switchboard/pkg/config"
)

// Worker performs one task and returns its textual output.
type Worker interface {
	Run(ctx context.Context, task string) (string, error)
}

// ChainWorker asks its model for an operation chain over a capability set, then runs
// the chain with an interpreter.
type ChainWorker struct {
	Kind     Kind
	Model    llms.Model
	Settings config.WorkerConfig
	Tools    tools.Set
	Prompt   string
	Examples [][2]string
	// Summarizer, when set, shortens long outputs.
	Summarizer *Summarizer
	Observer   chain.Observer
	Trace      *observability.Logger
	Logger     *slog.Logger

	once   sync.Once
	interp *chain.Interpreter
}

// NewChainWorker builds a chain worker with the prompt from pm (or the built-in one).
func NewChainWorker(kind Kind, model llms.Model, settings config.WorkerConfig, set tools.Set, pm *PromptManager) (*ChainWorker, error) {
	prompt, err := pm.GetWorkerPrompt(kind, set.Describe())
	if err != nil {
		return nil, err
	}
	w := &ChainWorker{
		Kind:     kind,
		Model:    model,
		Settings: settings,
		Tools:    set,
		Prompt:   prompt,
	}
	if ex, ok := chainExamples[kind]; ok {
		w.Examples = [][2]string{ex}
	}
	return w, nil
}

// interpreter is built on first use, after the exported fields are set.
func (w *ChainWorker) interpreter() *chain.Interpreter {
	w.once.Do(func() {
		opts := []chain.Option{chain.WithLogger(w.logger())}
		if w.Observer != nil {
			opts = append(opts, chain.WithObserver(w.Observer))
		}
		w.interp = chain.NewInterpreter(w.Tools.Table(), opts...)
	})
	return w.interp
}

func (w *ChainWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

func (w *ChainWorker) Run(ctx context.Context, task string) (string, error) {
	messages := conversation(w.Prompt, w.Examples, task)
	choice, err := generate(ctx, w.Model, messages, callOptions(w.Settings)...)
	if err != nil {
		return "", fmt.Errorf("%s worker: %w", w.Kind, err)
	}
	w.Trace.LogLLM(observability.ChatFrom(ctx), string(w.Kind), task, choice.Content, nil)

	ops, err := chain.Parse(choice.Content)
	if err != nil {
		return "", fmt.Errorf("%s worker: %w", w.Kind, err)
	}
	observability.LoggerFrom(ctx).Debug("chain planned", "worker", w.Kind, "operations", len(ops))

	trace, err := w.interpreter().Run(ctx, ops)
	if err != nil {
		var opErr *chain.OperationError
		if errors.As(err, &opErr) && len(opErr.Log) > 0 {
			return "", fmt.Errorf("%w (completed: %s)", err, completed(opErr.Log))
		}
		return "", err
	}

	out := chain.Format(trace.Output)
	if w.Settings.Summarize && w.Summarizer != nil {
		out = w.Summarizer.Summarize(ctx, out, string(w.Kind))
	}
	return out, nil
}

// completed renders the successful entries of a failed chain as
// "add(1, 1) = 2; power(2, 2) = 4", with long values cut short.
func completed(log []chain.Entry) string {
	parts := make([]string, 0, len(log))
	for _, e := range log {
		args := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			args = append(args, clip(chain.Format(a), 40))
		}
		parts = append(parts, fmt.Sprintf("%s(%s) = %s", e.Operation, strings.Join(args, ", "), clip(chain.Format(e.Output), 80)))
	}
	return strings.Join(parts, "; ")
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// TextWorker answers directly with its model, without capabilities.
type TextWorker struct {
	Kind     Kind
	Model    llms.Model
	Settings config.WorkerConfig
	Prompt   string
	Trace    *observability.Logger
}

// NewTextWorker builds a text worker. The persona files, if any, precede the prompt.
func NewTextWorker(kind Kind, model llms.Model, settings config.WorkerConfig, pm *PromptManager) (*TextWorker, error) {
	prompt, err := pm.GetWorkerPrompt(kind, "")
	if err != nil {
		return nil, err
	}
	persona, err := pm.GetPersona()
	if err != nil {
		return nil, err
	}
	if persona != "" {
		prompt = persona + "\n\n---\n\n" + prompt
	}
	return &TextWorker{Kind: kind, Model: model, Settings: settings, Prompt: prompt}, nil
}

func (w *TextWorker) Run(ctx context.Context, task string) (string, error) {
	choice, err := generate(ctx, w.Model, conversation(w.Prompt, nil, task), callOptions(w.Settings)...)
	if err != nil {
		return "", fmt.Errorf("%s worker: %w", w.Kind, err)
	}
	w.Trace.LogLLM(observability.ChatFrom(ctx), string(w.Kind), task, choice.Content, nil)

	out := strings.TrimSpace(choice.Content)
	if out == "" {
		return "", fmt.Errorf("%s worker: empty response", w.Kind)
	}
	return out, nil
}
