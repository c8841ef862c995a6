package governance

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rahul/switchboard/pkg/config"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a step about to be dispatched to a worker.
type Request struct {
	Worker string
	Task   string
	ChatID string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates steps against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies by worker name or by regex over the task text.
type DefaultPolicyEngine struct {
	DeniedWorkers map[string]bool
	DeniedRegex   []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedWorkers: make(map[string]bool),
		DeniedRegex:   make([]*regexp.Regexp, 0),
	}
}

// FromConfig builds an engine from the governance section of the config.
func FromConfig(cfg config.GovernanceConfig) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, w := range cfg.DenyWorkers {
		e.DenyWorker(w)
	}
	for _, p := range cfg.DenyPatterns {
		if err := e.DenyTaskPattern(p); err != nil {
			return nil, fmt.Errorf("governance pattern %q: %w", p, err)
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyWorker(name string) {
	e.DeniedWorkers[name] = true
}

func (e *DefaultPolicyEngine) DenyTaskPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedWorkers[req.Worker] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("worker '%s' is restricted by system policy", req.Worker),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Task) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("task matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "approved by default policy",
	}, nil
}
