package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrGraphUnresolvable is returned when pending steps remain but none can run,
	// which happens for cycles and for dependencies on ids absent from the plan.
	ErrGraphUnresolvable = errors.New("graph unresolvable")
	// ErrInvalidPlan is returned for structurally broken plans, such as duplicate ids.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrUnknownWorker is wrapped by invokers that do not recognise a worker name.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrStepFailed is returned under the FailFast policy once any step fails.
	ErrStepFailed = errors.New("step failed")
)

// UnresolvableError lists the steps that could never become ready.
type UnresolvableError struct {
	Pending []int
}

func (e *UnresolvableError) Error() string {
	ids := make([]string, len(e.Pending))
	for i, id := range e.Pending {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: no runnable steps among pending [%s]", ErrGraphUnresolvable, strings.Join(ids, ", "))
}

func (e *UnresolvableError) Unwrap() error { return ErrGraphUnresolvable }

// UnknownWorkerError builds the per-step error recorded for an unrecognised worker.
func UnknownWorkerError(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownWorker, name)
}

// StepFailedError reports the step that stopped a FailFast run.
type StepFailedError struct {
	StepID int
	Worker string
	Reason string
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("%s: step %d (%s): %s", ErrStepFailed, e.StepID, e.Worker, e.Reason)
}

func (e *StepFailedError) Unwrap() error { return ErrStepFailed }
