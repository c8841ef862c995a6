package agent

import "errors"

var (
	// ErrNoChoices is returned when a model reply carries no choices at all.
	ErrNoChoices = errors.New("model returned no choices")
	// ErrNoPlan is returned when a planner reply holds neither a plan call nor plan JSON.
	ErrNoPlan = errors.New("planner did not produce a plan")
	// ErrEmptyPlan is returned for a plan without steps.
	ErrEmptyPlan = errors.New("plan has no steps")
	// ErrPolicyDenied wraps governance denials recorded as step errors.
	ErrPolicyDenied = errors.New("denied by policy")
	// ErrNoDecision is returned when a ReAct reply cannot be decoded.
	ErrNoDecision = errors.New("model did not produce a decision")
	// ErrUnsupportedProvider is returned by NewModel for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)
