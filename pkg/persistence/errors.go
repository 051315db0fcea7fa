// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrEventNotFound indicates an event was not found by the given identifier.
	ErrEventNotFound = errors.New("event not found")

	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrRunNotFound indicates a workflow run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunAlreadyFinished indicates a second terminal update was attempted on a run.
	ErrRunAlreadyFinished = errors.New("run already finished")

	// ErrWaitTimerNotFound indicates a wait timer was not found by the given identifier.
	ErrWaitTimerNotFound = errors.New("wait timer not found")

	// ErrWaitTimerAlreadyFired indicates a competing poller already claimed the timer.
	ErrWaitTimerAlreadyFired = errors.New("wait timer already fired")

	// ErrRecordNotFound indicates the target of an update_field action does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnknownTable indicates update_field named a table the store does not expose.
	ErrUnknownTable = errors.New("unknown table")
)

// StoreError wraps persistence errors with operation context.
type StoreError struct {
	Op  string // Operation being performed (e.g. "SaveEvent", "FinishRun")
	ID  string // Record ID if applicable
	Err error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.ID, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, ID: id, Err: err}
}

// IsNotFound checks if an error indicates any record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrAutomationNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrWaitTimerNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
