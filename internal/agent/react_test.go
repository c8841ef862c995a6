package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/observability"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func decision(worker, task string) string {
	return fmt.Sprintf(`{"thought": "next: %s", "action_agent": %q, "action_task": %q, "goal_achieved": false, "final_answer": null}`, worker, worker, task)
}

func newReActLoop(model *fakeModel, workers map[Kind]Worker, maxSteps int) *ReActLoop {
	return &ReActLoop{
		Model:     model,
		Scheduler: engine.New(NewDispatcher(workers), engine.Options{Logger: quiet()}),
		Kinds:     []Kind{KindMath, KindString},
		MaxSteps:  maxSteps,
		Logger:    quiet(),
	}
}

func TestReActLoopReachesGoal(t *testing.T) {
	model := replyText(
		decision("math", "square 5"),
		"That gave the square.",
		"Sure:\n```json\n{\"thought\": \"done\", \"action_agent\": null, \"action_task\": null, \"goal_achieved\": true, \"final_answer\": \"25\"}\n```",
	)
	loop := newReActLoop(model, map[Kind]Worker{KindMath: echo("math")}, 5)

	res, err := loop.Run(context.Background(), "what is 5 squared")
	require.NoError(t, err)

	want := &ReActResult{
		Goal: "what is 5 squared",
		Steps: []ReActStep{{
			Number: 1, Thought: "next: math", Worker: "math", Task: "square 5",
			Observation: "math:square 5", Reflection: "That gave the square.",
		}},
		FinalAnswer:  "25",
		GoalAchieved: true,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, 3, model.calls())
	// The second decision sees the first step.
	system := messageText(model.requests[2][0])
	assert.Contains(t, system, "Step 1: next: math\nAction: math - square 5\nResult: math:square 5")
	assert.Contains(t, system, "- math: ")
	assert.Contains(t, messageText(model.requests[0][0]), "No previous steps.")
	assert.Equal(t, 150, model.options[1].MaxTokens)
}

func TestReActLoopStopsAtMaxSteps(t *testing.T) {
	var replies []string
	for i := 1; i <= 5; i++ {
		replies = append(replies, decision("string", fmt.Sprintf("task %d", i)), fmt.Sprintf("reflection %d", i))
	}
	model := replyText(replies...)
	loop := newReActLoop(model, map[Kind]Worker{KindString: echo("string")}, 5)

	res, err := loop.Run(context.Background(), "never done")
	require.NoError(t, err)
	assert.False(t, res.GoalAchieved)
	require.Len(t, res.Steps, 5)
	assert.Equal(t, "Could not achieve goal in 5 steps. Last observation: string:task 5", res.FinalAnswer)
	assert.Equal(t, 10, model.calls())

	// The fifth decision sees steps 2 to 4 only.
	system := messageText(model.requests[8][0])
	assert.NotContains(t, system, "Step 1:")
	assert.Contains(t, system, "Step 2: next: string\nAction: string - task 2")
	assert.Contains(t, system, "Reflection: reflection 4")
	assert.Equal(t, 1, strings.Count(system, "Reflection: reflection 3"))
}

func TestReActLoopRecordsWorkerFailures(t *testing.T) {
	model := replyText(
		decision("weather", "Oslo"),
		"Weather is not available.",
		`{"thought": "give up", "goal_achieved": true, "final_answer": "unknown"}`,
	)
	loop := newReActLoop(model, map[Kind]Worker{KindMath: echo("math")}, 3)

	res, err := loop.Run(context.Background(), "weather in Oslo")
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].Failed)
	assert.Equal(t, "ERROR: unknown worker: weather", res.Steps[0].Observation)
	assert.Equal(t, "unknown", res.FinalAnswer)
}

func TestReActLoopBadDecision(t *testing.T) {
	model := replyText(decision("math", "1+1"), "ok", "I am not sure what to do.")
	loop := newReActLoop(model, map[Kind]Worker{KindMath: echo("math")}, 3)

	res, err := loop.Run(context.Background(), "goal")
	require.ErrorIs(t, err, ErrNoDecision)
	assert.Contains(t, err.Error(), "react step 2")
	require.NotNil(t, res)
	assert.Len(t, res.Steps, 1)
}

func TestReActLoopReflectionFailureIsNotFatal(t *testing.T) {
	model := replyText(decision("math", "2+2"))
	loop := newReActLoop(model, map[Kind]Worker{KindMath: echo("math")}, 1)

	res, err := loop.Run(context.Background(), "goal")
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)
	assert.Empty(t, res.Steps[0].Reflection)
	assert.False(t, res.GoalAchieved)
}

func TestConductorHandsRunLoggerToWorkers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	d := NewDispatcher(map[Kind]Worker{KindMath: workerFunc(func(ctx context.Context, _ string) (string, error) {
		observability.LoggerFrom(ctx).Info("worker says hi")
		return "1", nil
	})})
	hist := &fakeHistory{}
	c := &Conductor{
		Scheduler: engine.New(d, engine.Options{Logger: quiet()}),
		History:   hist,
		Logger:    logger,
	}

	plan := engine.Plan{Steps: []engine.Step{{ID: 0, Worker: "math", Task: "1"}}}
	_, err := c.Execute(context.Background(), "c9", "one", plan)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"worker says hi","chat_id":"c9"`)

	c.Remember("c9", "one", "math: 1")
	assert.Equal(t, []string{"human:one", "ai:math: 1"}, hist.messages)
}
