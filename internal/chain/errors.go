package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation means an operation name is missing from the capability table.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrOperationFailed means a capability returned an error or panicked.
	ErrOperationFailed = errors.New("operation failed")
	// ErrMalformedChain is returned by Parse when no operation list can be decoded.
	ErrMalformedChain = errors.New("malformed chain")
)

// OperationError describes the operation that stopped a chain. Log holds the entries
// of the operations that succeeded before it.
type OperationError struct {
	Kind  error
	Index int
	Name  string
	Args  []any
	Log   []Entry
	Err   error
}

func (e *OperationError) Error() string {
	if e.Kind == ErrUnknownOperation {
		return fmt.Sprintf("%s %q at position %d", ErrUnknownOperation, e.Name, e.Index)
	}
	return fmt.Sprintf("operation %q at position %d failed: %v", e.Name, e.Index, e.Err)
}

// Is matches the error's kind, so errors.Is(err, ErrUnknownOperation) works.
func (e *OperationError) Is(target error) bool { return target == e.Kind }

func (e *OperationError) Unwrap() error { return e.Err }
