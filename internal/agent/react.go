package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/llmtext"
	"github.com/rahul/switchboard/internal/observability"
)

const (
	// DefaultReActSteps caps a loop whose MaxSteps is unset.
	DefaultReActSteps = 10
	// reactMemory is how many past steps the model sees.
	reactMemory = 3
)

// ReActStep is one reason, act, observe and reflect iteration.
type ReActStep struct {
	Number      int    `json:"step"`
	Thought     string `json:"thought"`
	Worker      string `json:"action_agent"`
	Task        string `json:"action_task"`
	Observation string `json:"observation"`
	Reflection  string `json:"reflection"`
	Failed      bool   `json:"failed,omitempty"`
}

// ReActResult is the outcome of a ReAct loop.
type ReActResult struct {
	Goal         string      `json:"goal"`
	Steps        []ReActStep `json:"steps"`
	FinalAnswer  string      `json:"final_answer"`
	GoalAchieved bool        `json:"goal_achieved"`
}

// reactDecision is the JSON the model answers with each iteration.
type reactDecision struct {
	Thought      string `json:"thought"`
	Worker       string `json:"action_agent"`
	Task         string `json:"action_task"`
	GoalAchieved bool   `json:"goal_achieved"`
	FinalAnswer  string `json:"final_answer"`
}

// ReActLoop chooses one action at a time, runs it as a single-step plan on the
// scheduler and reflects on the observation, until the model reports the goal as
// achieved or MaxSteps actions have run.
type ReActLoop struct {
	Model     llms.Model
	Scheduler *engine.Scheduler
	Kinds     []Kind
	MaxSteps  int
	Trace     *observability.Logger
	Logger    *slog.Logger
}

func (r *ReActLoop) logger(ctx context.Context) *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return observability.LoggerFrom(ctx)
}

// Run pursues goal. Worker failures become observations; model and decoding errors
// end the loop and are returned with the steps taken so far.
func (r *ReActLoop) Run(ctx context.Context, goal string) (*ReActResult, error) {
	maxSteps := r.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultReActSteps
	}
	chatID := observability.ChatFrom(ctx)
	res := &ReActResult{Goal: goal}

	for n := 1; n <= maxSteps; n++ {
		d, err := r.decide(ctx, goal, res.Steps)
		if err != nil {
			return res, fmt.Errorf("react step %d: %w", n, err)
		}
		if d.GoalAchieved {
			r.logger(ctx).Info("Goal achieved.", "steps", len(res.Steps))
			res.GoalAchieved = true
			res.FinalAnswer = d.FinalAnswer
			return res, nil
		}

		step := ReActStep{Number: n, Thought: d.Thought, Worker: d.Worker, Task: d.Task}
		step.Observation, step.Failed, err = r.act(ctx, d)
		if err != nil {
			return res, fmt.Errorf("react step %d: %w", n, err)
		}
		step.Reflection = r.reflect(ctx, step)

		r.Trace.LogReActStep(chatID, step)
		r.logger(ctx).Info("ReAct step finished.", "step", n, "worker", step.Worker, "failed", step.Failed)
		res.Steps = append(res.Steps, step)
	}

	last := ""
	if len(res.Steps) > 0 {
		last = res.Steps[len(res.Steps)-1].Observation
	}
	res.FinalAnswer = fmt.Sprintf("Could not achieve goal in %d steps. Last observation: %s", maxSteps, last)
	return res, nil
}

func (r *ReActLoop) decide(ctx context.Context, goal string, steps []ReActStep) (reactDecision, error) {
	system := fmt.Sprintf(reactPrompt, goal, describeKinds(r.Kinds), recentSteps(steps))
	input := fmt.Sprintf("Goal: %s\n\nWhat should we do next?", goal)

	choice, err := generate(ctx, r.Model, conversation(system, nil, input), llms.WithTemperature(0.3))
	if err != nil {
		return reactDecision{}, err
	}
	r.Trace.LogLLM(observability.ChatFrom(ctx), "react", input, choice.Content, nil)

	var d reactDecision
	if err := json.Unmarshal([]byte(llmtext.Normalize(choice.Content, '{')), &d); err != nil {
		return reactDecision{}, fmt.Errorf("%w: %v", ErrNoDecision, err)
	}
	return d, nil
}

// act runs the chosen action as a one-step plan. The returned error is reserved for
// failures of the run itself, such as a cancelled context.
func (r *ReActLoop) act(ctx context.Context, d reactDecision) (string, bool, error) {
	if strings.TrimSpace(d.Worker) == "" {
		return "ERROR: no action chosen", true, nil
	}
	plan := engine.Plan{Steps: []engine.Step{{ID: 0, Worker: d.Worker, Task: d.Task}}}
	res, err := r.Scheduler.Run(ctx, plan)
	if res == nil {
		return "", false, err
	}
	rec, ok := res.Record(0)
	switch {
	case !ok && err != nil:
		return "", false, err
	case !ok:
		return "ERROR: no result", true, nil
	case rec.Failed():
		return "ERROR: " + rec.Error, true, nil
	}
	return rec.Output, false, nil
}

// reflect asks for a short assessment of the last observation. A failed call leaves
// the reflection empty.
func (r *ReActLoop) reflect(ctx context.Context, step ReActStep) string {
	prompt := fmt.Sprintf(reflectionPrompt, step.Worker, step.Task, step.Observation)
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}
	choice, err := generate(ctx, r.Model, msgs, llms.WithTemperature(0.3), llms.WithMaxTokens(150))
	if err != nil {
		r.logger(ctx).Warn("Reflection failed.", "step", step.Number, "error", err)
		return ""
	}
	return strings.TrimSpace(choice.Content)
}

func recentSteps(steps []ReActStep) string {
	if len(steps) == 0 {
		return "No previous steps."
	}
	if len(steps) > reactMemory {
		steps = steps[len(steps)-reactMemory:]
	}
	blocks := make([]string, 0, len(steps))
	for _, s := range steps {
		blocks = append(blocks, fmt.Sprintf("Step %d: %s\nAction: %s - %s\nResult: %s\nReflection: %s",
			s.Number, s.Thought, s.Worker, s.Task, s.Observation, s.Reflection))
	}
	return strings.Join(blocks, "\n\n")
}
