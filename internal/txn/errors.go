package txn

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/FgForrest/evitaDB-sub062/internal/mutation"
)

var (
	// ErrManagerClosed is returned by ApplyMutation after Close was called.
	ErrManagerClosed = errors.New("engine transaction manager is closed")

	// ErrShutdownTimedOut is returned by Close when in-flight transactions did
	// not finish before the context was done.
	ErrShutdownTimedOut = errors.New("timed out waiting for in-flight engine mutations")
)

// TransactionTimedOutError reports that the engine state lock could not be
// acquired. No state was touched.
type TransactionTimedOutError struct {
	// Timeout is the configured lock wait limit.
	Timeout time.Duration

	// Interrupted is set when the caller cancelled the wait instead of the
	// limit running out.
	Interrupted bool

	Err error
}

func (e *TransactionTimedOutError) Error() string {
	if e.Interrupted {
		return "interrupted while waiting for the engine state lock"
	}
	return fmt.Sprintf("engine state lock not acquired within %s", e.Timeout)
}

func (e *TransactionTimedOutError) Unwrap() error { return e.Err }

// ConflictingEngineMutationError reports that another in-flight transaction
// holds one of the mutation's conflict keys. The caller may retry.
type ConflictingEngineMutationError struct {
	Mutation      mutation.Kind
	Key           mutation.ConflictKey
	TransactionID uuid.UUID
}

func (e *ConflictingEngineMutationError) Error() string {
	return fmt.Sprintf("engine mutation `%s` with key `%s` is in conflict with already processed transaction `%s`",
		e.Mutation, e.Key, e.TransactionID)
}

// InvalidMutationError reports that the mutation's preconditions do not hold
// in the current engine state.
type InvalidMutationError struct {
	Mutation mutation.Kind
	Err      error
}

func (e *InvalidMutationError) Error() string {
	return fmt.Sprintf("engine mutation `%s` is not applicable: %v", e.Mutation, e.Err)
}

func (e *InvalidMutationError) Unwrap() error { return e.Err }

// IsTransactionTimedOut returns true if the error is a lock wait timeout or
// interruption. Uses errors.As to handle wrapped errors.
func IsTransactionTimedOut(err error) bool {
	var te *TransactionTimedOutError
	return errors.As(err, &te)
}

// IsInterrupted returns true if the lock wait was cancelled by the caller.
func IsInterrupted(err error) bool {
	var te *TransactionTimedOutError
	if errors.As(err, &te) {
		return te.Interrupted
	}
	return false
}

// IsConflict returns true if the error is a conflict-key collision.
func IsConflict(err error) bool {
	var ce *ConflictingEngineMutationError
	return errors.As(err, &ce)
}

// IsInvalidMutation returns true if the error is a failed precondition.
func IsInvalidMutation(err error) bool {
	var ie *InvalidMutationError
	return errors.As(err, &ie)
}
