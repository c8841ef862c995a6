package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/observability"
)

// Brain answers one chat message.
type Brain interface {
	Think(ctx context.Context, chatID string, input string) (string, error)
}

// HistoryStore persists conversation messages and finished runs.
type HistoryStore interface {
	AddMessage(chatID string, role string, content string) error
	GetHistory(chatID string, limit int) ([]llms.MessageContent, error)
	SaveRun(ctx context.Context, chatID, request string, plan engine.Plan, res *engine.Result, runErr error) (int64, error)
}

// Outcome is everything a handled request produced.
type Outcome struct {
	RunID  int64 // zero when nothing was persisted
	Plan   engine.Plan
	Result *engine.Result
}

// Conductor plans a request, runs the plan on the scheduler and records the run.
type Conductor struct {
	Planner   Planner
	Scheduler *engine.Scheduler
	History   HistoryStore
	Trace     *observability.Logger
	Status    *observability.Status
	Logger    *slog.Logger
}

var _ Brain = (*Conductor)(nil)

func (c *Conductor) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Conductor) setStatus(role observability.Role, task string) {
	if c.Status != nil {
		c.Status.Set(role, task)
	}
}

// Handle plans and executes request. A planning failure returns a nil Outcome.
func (c *Conductor) Handle(ctx context.Context, chatID, request string) (*Outcome, error) {
	ctx = observability.WithChat(ctx, chatID)
	c.setStatus(observability.RolePlanner, request)
	defer c.setStatus(observability.RoleIdle, "")

	plan, err := c.Planner.Plan(ctx, chatID, request)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	c.Trace.LogPlan(chatID, request, plan)
	c.logger().Info("Plan ready.", "chat_id", chatID, "steps", plan.IDs())

	return c.Execute(ctx, chatID, request, plan)
}

// Execute runs an already built plan. The Outcome is returned even when the run
// fails, carrying whatever partial Result the scheduler produced.
func (c *Conductor) Execute(ctx context.Context, chatID, request string, plan engine.Plan) (*Outcome, error) {
	ctx = observability.WithChat(ctx, chatID)
	ctx = observability.WithLogger(ctx, c.logger().With("chat_id", chatID))
	c.setStatus(observability.RoleRunning, request)

	res, runErr := c.Scheduler.Run(ctx, plan)
	out := &Outcome{Plan: plan, Result: res}

	if c.History != nil {
		// The request context may already be done; the run is still worth keeping.
		id, err := c.History.SaveRun(context.WithoutCancel(ctx), chatID, request, plan, res, runErr)
		if err != nil {
			c.logger().Warn("Failed to persist run.", "chat_id", chatID, "error", err)
		} else {
			out.RunID = id
		}
	}
	return out, runErr
}

// Think handles a chat message and renders the combined result as the reply. Run
// errors that still left records are reported inside the reply.
func (c *Conductor) Think(ctx context.Context, chatID string, input string) (string, error) {
	out, err := c.Handle(ctx, chatID, input)
	if out == nil || out.Result == nil {
		if err == nil {
			err = fmt.Errorf("run produced no result")
		}
		return "", err
	}

	reply := Reply(out.Result, err)
	c.Remember(chatID, input, reply)
	return reply, nil
}

// Remember stores an exchange as conversation history, where the LLM planner reads
// it back as memory.
func (c *Conductor) Remember(chatID, input, reply string) {
	if c.History == nil {
		return
	}
	if err := c.History.AddMessage(chatID, "human", input); err != nil {
		c.logger().Warn("Failed to save message.", "chat_id", chatID, "error", err)
	}
	if err := c.History.AddMessage(chatID, "ai", reply); err != nil {
		c.logger().Warn("Failed to save message.", "chat_id", chatID, "error", err)
	}
}

// Reply renders a result for a chat user.
func Reply(res *engine.Result, runErr error) string {
	var b strings.Builder
	b.WriteString(res.Combined)
	for _, rec := range res.Records {
		if rec.Failed() {
			fmt.Fprintf(&b, "\n- step %d (%s) failed: %s", rec.StepID, rec.Worker, rec.Error)
		}
	}
	if runErr != nil {
		fmt.Fprintf(&b, "\n(run stopped: %v)", runErr)
	}
	return b.String()
}
