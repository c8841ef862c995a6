package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/switchboard/internal/agent"
	"github.com/rahul/switchboard/internal/engine"
	"github.com/rahul/switchboard/internal/gateway"
	"github.com/rahul/switchboard/internal/observability"
	"github.com/rahul/switchboard/pkg/config"
)

const cliChat = "cli"

func main() {
	configPath := flag.String("config", "config.json", "path to the config file (.json or .yaml)")
	request := flag.String("request", "", "plan and run a single request, then exit")
	planPath := flag.String("plan", "", "run a YAML or JSON plan file, then exit")
	pipeline := flag.String("pipeline", "", "run the research, write and edit pipeline on a topic, then exit")
	react := flag.String("react", "", "pursue a goal one action at a time (reason, act, reflect), then exit")
	maxSteps := flag.Int("max-steps", agent.DefaultReActSteps, "action limit for -react")
	runs := flag.Int("runs", 0, "list the latest N stored runs of -chat, then exit")
	showRunID := flag.Int64("show-run", 0, "print a stored run with its step records, then exit")
	chatID := flag.String("chat", cliChat, "chat id used for one-shot runs and -runs")
	dryRun := flag.Bool("dry-run", false, "print the plan and its waves without running it")
	asJSON := flag.Bool("json", false, "print one-shot results as JSON")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	job := oneShot{
		chatID:   *chatID,
		request:  *request,
		planPath: *planPath,
		topic:    *pipeline,
		goal:     *react,
		maxSteps: *maxSteps,
		runs:     *runs,
		showRun:  *showRunID,
		dryRun:   *dryRun,
		asJSON:   *asJSON,
	}

	var logOut io.Writer = os.Stderr
	if !job.active() {
		observability.PrintBanner()
		observability.InitializeTerminal()
		// Route all log output through the terminal mutex so it never
		// interrupts the dashboard's cursor save/restore sequence.
		logOut = observability.NewTermWriter()
		log.SetOutput(logOut)
	}
	logger := observability.NewSlog(cfg.Logging.Level, cfg.Logging.Format, logOut)
	slog.SetDefault(logger)

	var traceOut io.Writer
	if cfg.Logging.Level == "debug" {
		traceOut = logOut
	}
	trace := observability.NewLogger(traceOut, cfg.Logging.TracePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger, trace)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	if job.active() {
		code := job.run(ctx, a, os.Stdout)
		a.Close()
		stop()
		os.Exit(code)
	}

	serve(ctx, stop, cfg, a)
}

// oneShot is a CLI invocation that does its work and exits.
type oneShot struct {
	chatID   string
	request  string
	planPath string
	topic    string
	goal     string
	maxSteps int
	runs     int
	showRun  int64
	dryRun   bool
	asJSON   bool
}

func (j oneShot) active() bool {
	return j.request != "" || j.planPath != "" || j.topic != "" || j.goal != "" || j.runs > 0 || j.showRun > 0
}

// run executes the job and returns the process exit code.
func (j oneShot) run(ctx context.Context, a *app, out io.Writer) int {
	ctx = observability.WithChat(ctx, j.chatID)
	var err error
	switch {
	case j.runs > 0:
		err = listRuns(ctx, a.history, j.chatID, j.runs, j.asJSON, out)
	case j.showRun > 0:
		err = showRun(ctx, a.history, j.showRun, j.asJSON, out)
	case j.goal != "":
		err = j.runReAct(ctx, a, out)
	default:
		err = j.runPlan(ctx, a, out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

func (j oneShot) runReAct(ctx context.Context, a *app, out io.Writer) error {
	loop := *a.react
	loop.MaxSteps = j.maxSteps
	res, err := loop.Run(ctx, j.goal)
	if res != nil {
		if j.asJSON {
			if werr := writeJSON(out, res); werr != nil {
				return werr
			}
		} else {
			printReAct(out, res)
		}
		if err == nil {
			a.conductor.Remember(j.chatID, j.goal, res.FinalAnswer)
		}
	}
	if err != nil {
		return fmt.Errorf("react failed: %w", err)
	}
	return nil
}

func (j oneShot) runPlan(ctx context.Context, a *app, out io.Writer) error {
	c := a.conductor
	var (
		plan    engine.Plan
		request = j.request
		err     error
	)
	switch {
	case j.planPath != "":
		plan, err = agent.LoadPlanFile(j.planPath)
		request = j.planPath
	case j.topic != "":
		plan = agent.ContentPipeline(j.topic)
		request = j.topic
	case j.dryRun:
		plan, err = c.Planner.Plan(ctx, j.chatID, request)
		if err == nil {
			c.Trace.LogPlan(j.chatID, request, plan)
		}
	}
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	if j.dryRun {
		return printWaves(out, plan, j.asJSON)
	}

	var outcome *agent.Outcome
	var runErr error
	if j.request != "" && j.planPath == "" && j.topic == "" {
		// Chat-style requests go through the same path as gateway messages.
		outcome, runErr = c.Handle(ctx, j.chatID, request)
		if outcome == nil {
			return runErr
		}
	} else {
		outcome, runErr = c.Execute(ctx, j.chatID, request, plan)
	}

	if outcome.Result != nil {
		c.Remember(j.chatID, request, agent.Reply(outcome.Result, runErr))
	}
	if j.asJSON {
		body := map[string]any{"run_id": outcome.RunID, "plan": outcome.Plan, "result": outcome.Result}
		if runErr != nil {
			body["error"] = runErr.Error()
		}
		if err := writeJSON(out, body); err != nil {
			return err
		}
	} else if outcome.Result != nil {
		fmt.Fprintln(out, agent.Reply(outcome.Result, runErr))
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func printWaves(out io.Writer, plan engine.Plan, asJSON bool) error {
	waves, err := engine.Waves(plan)
	if err != nil {
		return fmt.Errorf("plan rejected: %w", err)
	}
	if asJSON {
		return writeJSON(out, map[string]any{"plan": plan, "waves": waves})
	}
	for _, s := range plan.Steps {
		fmt.Fprintf(out, "step %d (%s) depends on %v: %s\n", s.ID, s.Worker, s.DependsOn, s.Task)
	}
	for i, w := range waves {
		fmt.Fprintf(out, "wave %d: %v\n", i, w)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}

// serve runs the enabled gateways with the live dashboard until ctx is cancelled.
func serve(ctx context.Context, stop context.CancelFunc, cfg *config.Config, a *app) {
	var gateways []gateway.Messenger
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, a.conductor)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, a.conductor)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		observability.CleanupTerminal()
		log.Fatal("No gateway is enabled; use -request, -plan or -pipeline for one-shot runs")
	}

	// Start Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus(a.status)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.status.Heartbeat()
				a.trace.LogHeartbeat()
			}
		}
	}()

	for _, g := range gateways {
		go func(g gateway.Messenger) {
			if err := g.Start(ctx); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop() // stop caller if gateway dies
			}
		}(g)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] SWITCHBOARD DE-INITIALIZED. GOODBYE.\033[0m")
}
