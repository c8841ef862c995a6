package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rahul/switchboard/internal/agent"
	"github.com/rahul/switchboard/internal/store"
)

// runLister is the part of the history store the run flags read.
type runLister interface {
	GetRun(ctx context.Context, id int64) (*store.Run, error)
	RecentRuns(ctx context.Context, chatID string, limit int) ([]*store.Run, error)
}

func listRuns(ctx context.Context, h runLister, chatID string, limit int, asJSON bool, out io.Writer) error {
	runs, err := h.RecentRuns(ctx, chatID, limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "no runs for chat %q\n", chatID)
		return nil
	}
	for _, r := range runs {
		fmt.Fprintln(out, runSummary(r))
	}
	return nil
}

func showRun(ctx context.Context, h runLister, id int64, asJSON bool, out io.Writer) error {
	run, err := h.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, run)
	}
	fmt.Fprintln(out, runSummary(run))
	fmt.Fprintf(out, "waves: %v\n", run.Waves)
	for _, rec := range run.Records {
		if rec.Failed() {
			fmt.Fprintf(out, "  step %d (%s) FAILED: %s\n", rec.StepID, rec.Worker, rec.Error)
			continue
		}
		fmt.Fprintf(out, "  step %d (%s): %s\n", rec.StepID, rec.Worker, oneLine(rec.Output, 120))
	}
	if run.Combined != "" {
		fmt.Fprintf(out, "combined: %s\n", run.Combined)
	}
	return nil
}

// runSummary is "#<id> <time> <status> <steps> steps: <request>".
func runSummary(r *store.Run) string {
	status := "ok"
	switch {
	case r.Error != "":
		status = "error"
	case !r.Succeeded():
		status = "partial"
	}
	return fmt.Sprintf("#%d %s %s %d steps: %s",
		r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), status, len(r.Plan.Steps), oneLine(r.Request, 80))
}

func printReAct(out io.Writer, res *agent.ReActResult) {
	for _, s := range res.Steps {
		fmt.Fprintf(out, "step %d\n  thought: %s\n  action: %s - %s\n  observation: %s\n  reflection: %s\n",
			s.Number, s.Thought, s.Worker, s.Task, oneLine(s.Observation, 200), s.Reflection)
	}
	status := "goal achieved"
	if !res.GoalAchieved {
		status = "goal not achieved"
	}
	fmt.Fprintf(out, "%s after %d steps\n%s\n", status, len(res.Steps), res.FinalAnswer)
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
