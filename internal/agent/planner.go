package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"gopkg.in/yaml.v3"

	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/llmtext"
	"github.com/rahul/switchboard/internal/observability"
	"github.com/rahul/switchboard/pkg/config"
)

// Planner turns a user request into a plan.
type Planner interface {
	Plan(ctx context.Context, chatID, request string) (engine.Plan, error)
}

// PlannerFunc adapts a function to the Planner interface.
type PlannerFunc func(ctx context.Context, chatID, request string) (engine.Plan, error)

func (f PlannerFunc) Plan(ctx context.Context, chatID, request string) (engine.Plan, error) {
	return f(ctx, chatID, request)
}

// HistoryReader is the part of the history store planners read from.
type HistoryReader interface {
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
}

// wireStep is a plan step as models and plan files write it. Step ids are positions
// in the list unless an explicit id is given.
type wireStep struct {
	ID           *int   `json:"id,omitempty" yaml:"id,omitempty"`
	Worker       string `json:"worker" yaml:"worker"`
	Agent        string `json:"agent,omitempty" yaml:"agent,omitempty"`
	Task         string `json:"task" yaml:"task"`
	Dependencies []int  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependsOn    []int  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

type wirePlan struct {
	Steps []wireStep `json:"steps" yaml:"steps"`
}

func (p wirePlan) toPlan() (engine.Plan, error) {
	if len(p.Steps) == 0 {
		return engine.Plan{}, ErrEmptyPlan
	}
	plan := engine.Plan{Steps: make([]engine.Step, 0, len(p.Steps))}
	for i, w := range p.Steps {
		worker := w.Worker
		if worker == "" {
			worker = w.Agent
		}
		if strings.TrimSpace(worker) == "" || strings.TrimSpace(w.Task) == "" {
			return engine.Plan{}, fmt.Errorf("%w: step %d needs a worker and a task", engine.ErrInvalidPlan, i)
		}
		id := i
		if w.ID != nil {
			id = *w.ID
		}
		deps := w.Dependencies
		if len(deps) == 0 {
			deps = w.DependsOn
		}
		plan.Steps = append(plan.Steps, engine.Step{
			ID:        id,
			Worker:    strings.TrimSpace(worker),
			Task:      w.Task,
			DependsOn: deps,
		})
	}
	return plan, plan.Validate()
}

// ParsePlan decodes a plan from model output: {"steps": [...]}, a bare array of steps,
// or a single {"agent", "task"} object. Code fences and surrounding prose are ignored.
func ParsePlan(raw string) (engine.Plan, error) {
	text := llmtext.StripFences(raw)
	obj := llmtext.Extract(text, '{')
	arr := llmtext.Extract(text, '[')

	if arr != "" && (obj == "" || strings.Index(text, arr) < strings.Index(text, obj)) {
		var steps []wireStep
		if err := json.Unmarshal([]byte(arr), &steps); err != nil {
			return engine.Plan{}, fmt.Errorf("%w: %v", ErrNoPlan, err)
		}
		return wirePlan{Steps: steps}.toPlan()
	}
	if obj == "" {
		return engine.Plan{}, ErrNoPlan
	}

	var wp wirePlan
	if err := json.Unmarshal([]byte(obj), &wp); err != nil {
		return engine.Plan{}, fmt.Errorf("%w: %v", ErrNoPlan, err)
	}
	if len(wp.Steps) == 0 {
		var single wireStep
		if err := json.Unmarshal([]byte(obj), &single); err == nil && single.Task != "" {
			wp.Steps = []wireStep{single}
		}
	}
	return wp.toPlan()
}

var proposePlanTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        "propose_plan",
		Description: "Submit a plan of worker steps. Steps may depend on earlier steps by index.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"steps": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"worker": map[string]any{
								"type": "string",
							},
							"task": map[string]any{
								"type": "string",
							},
							"dependencies": map[string]any{
								"type":  "array",
								"items": map[string]any{"type": "integer"},
							},
						},
						"required": []string{"worker", "task", "dependencies"},
					},
				},
			},
			"required": []string{"steps"},
		},
	},
}

// LLMPlanner asks a model to plan, preferring the propose_plan tool call and falling
// back to plan JSON in the reply text.
type LLMPlanner struct {
	Model    llms.Model
	Settings config.WorkerConfig
	Prompts  *PromptManager
	History  HistoryReader
	// HistoryLimit is how many past messages are shown as memory.
	HistoryLimit int
	Kinds        []Kind
	Trace        *observability.Logger
}

func (p *LLMPlanner) Plan(ctx context.Context, chatID, request string) (engine.Plan, error) {
	prompt, err := p.Prompts.GetPlannerPrompt()
	if err != nil {
		return engine.Plan{}, fmt.Errorf("failed to load planner prompt: %w", err)
	}
	kinds := p.Kinds
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	prompt = strings.NewReplacer(
		"{{workers}}", describeKinds(kinds),
		"{{memory}}", p.memory(chatID),
	).Replace(prompt)

	messages := conversation(prompt, nil, request)
	opts := append(callOptions(p.Settings), llms.WithTools([]llms.Tool{proposePlanTool}))
	choice, err := generate(ctx, p.Model, messages, opts...)
	if err != nil {
		return engine.Plan{}, fmt.Errorf("planning error: %w", err)
	}
	p.Trace.LogLLM(chatID, "planner", request, choice.Content, choice.ToolCalls)

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil || tc.FunctionCall.Name != proposePlanTool.Function.Name {
			continue
		}
		var wp wirePlan
		if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &wp); err != nil {
			return engine.Plan{}, fmt.Errorf("failed to parse propose_plan arguments: %w", err)
		}
		return wp.toPlan()
	}
	return ParsePlan(choice.Content)
}

func (p *LLMPlanner) memory(chatID string) string {
	if p.History == nil || p.HistoryLimit <= 0 {
		return "No history."
	}
	history, err := p.History.GetHistory(chatID, p.HistoryLimit)
	if err != nil || len(history) == 0 {
		return "No history."
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		var text []string
		for _, part := range m.Parts {
			if t, ok := part.(llms.TextContent); ok {
				text = append(text, t.Text)
			}
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", m.Role, strings.Join(text, " ")))
	}
	return strings.Join(lines, "\n")
}

// Route sends a clause to Kind when it mentions any keyword. Rules are tried in order.
type Route struct {
	Kind     Kind
	Keywords []string
}

var defaultRoutes = []Route{
	{KindWeather, []string{"weather", "forecast", "temperature in", "humidity"}},
	{KindString, []string{"count words", "word count", "count the words", "letters", "uppercase", "upper case", "lowercase", "lower case"}},
	{KindCode, []string{"code", "script", "program", "starlark", "python", "file"}},
	{KindMath, []string{"calculate", "compute", "factorial", "multiply", "divide", "subtract", "add ", "plus", "minus", "times", "power", "sum of", "square"}},
	{KindEditor, []string{"edit", "proofread", "improve", "polish", "review"}},
	{KindWriter, []string{"write", "draft", "article", "blog", "essay", "poem"}},
	{KindWebSearch, []string{"search", "look up", "find", "news", "latest", "who is", "what is"}},
}

// RulePlanner plans without a model. Clauses joined by "then" form a dependency chain;
// clauses separated by ";" or "and also" are independent.
type RulePlanner struct {
	Routes []Route
	// Fallback handles clauses no rule matches.
	Fallback Kind
}

func NewRulePlanner() *RulePlanner {
	return &RulePlanner{Routes: defaultRoutes, Fallback: KindWebSearch}
}

func (p *RulePlanner) Plan(_ context.Context, _ string, request string) (engine.Plan, error) {
	var plan engine.Plan
	for _, group := range splitAny(request, ";", " and also ") {
		prev := -1
		for _, clause := range splitAny(group, ", then ", " then ") {
			step := engine.Step{ID: len(plan.Steps), Worker: string(p.route(clause)), Task: clause}
			if prev >= 0 {
				step.DependsOn = []int{prev}
			}
			prev = step.ID
			plan.Steps = append(plan.Steps, step)
		}
	}
	if len(plan.Steps) == 0 {
		return engine.Plan{}, ErrEmptyPlan
	}
	return plan, nil
}

func (p *RulePlanner) route(clause string) Kind {
	lower := " " + strings.ToLower(clause) + " "
	for _, r := range p.Routes {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Kind
			}
		}
	}
	return p.Fallback
}

// splitAny splits s on every separator, matched case-insensitively, dropping blanks.
func splitAny(s string, seps ...string) []string {
	parts := []string{s}
	for _, sep := range seps {
		var next []string
		for _, part := range parts {
			lower := asciiLower(part)
			for {
				i := strings.Index(lower, sep)
				if i < 0 {
					break
				}
				next = append(next, part[:i])
				part, lower = part[i+len(sep):], lower[i+len(sep):]
			}
			next = append(next, part)
		}
		parts = next
	}
	out := parts[:0]
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// asciiLower lowercases ASCII letters only, so byte offsets match the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// LoadPlanFile reads a YAML (or JSON, which YAML accepts) plan file.
func LoadPlanFile(path string) (engine.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Plan{}, fmt.Errorf("failed to read plan file: %w", err)
	}
	var wp wirePlan
	if err := yaml.Unmarshal(data, &wp); err != nil {
		return engine.Plan{}, fmt.Errorf("failed to decode plan file %s: %w", path, err)
	}
	return wp.toPlan()
}

// FilePlanner serves a fixed plan from a file, replacing {request} in each task.
// The file is read on every call so edits apply without a restart.
type FilePlanner struct {
	Path string
}

func (p *FilePlanner) Plan(_ context.Context, _ string, request string) (engine.Plan, error) {
	plan, err := LoadPlanFile(p.Path)
	if err != nil {
		return engine.Plan{}, err
	}
	for i := range plan.Steps {
		plan.Steps[i].Task = strings.ReplaceAll(plan.Steps[i].Task, "{request}", request)
	}
	return plan, nil
}

// ContentPipeline is the research, write, edit workflow for a topic as a three-wave plan.
func ContentPipeline(topic string) engine.Plan {
	return engine.Plan{Steps: []engine.Step{
		{ID: 0, Worker: string(KindWebSearch), Task: "Search for recent information about " + topic},
		{ID: 1, Worker: string(KindWriter), Task: "Write content about " + topic + " using the research above.", DependsOn: []int{0}},
		{ID: 2, Worker: string(KindEditor), Task: "Review and improve the content above.", DependsOn: []int{1}},
	}}
}
