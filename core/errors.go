package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an escalation for the given tenant / id pair
// does not exist in the underlying store.
var ErrNotFound = errors.New("escalation not found")

// ValidationError reports a missing or malformed field on an inbound request.
// It is rejected before any persistence happens.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Reason)
}

// DuplicateEscalationError signals that an open escalation already exists for
// the same (tenant, conversation, type) trigger. The coordinator resolves it
// internally by returning the existing record; it never surfaces to callers
// as a hard failure.
type DuplicateEscalationError struct {
	ExistingID string
}

// Error implements the error interface.
func (e *DuplicateEscalationError) Error() string {
	return fmt.Sprintf("open escalation %s already exists for this trigger", e.ExistingID)
}

// PersistenceError wraps a storage failure. It surfaces to the caller, which
// degrades to a generic retry reply for the end user.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying storage error for errors.Is / errors.As.
func (e *PersistenceError) Unwrap() error { return e.Err }

// StaleStateError reports an attempted transition from a state the record is
// no longer in, e.g. resuming an already-resumed escalation. Callers treat it
// as a logged no-op for idempotency rather than a failure.
type StaleStateError struct {
	EscalationID string
	From, To     State
	Actual       State
}

// Error implements the error interface.
func (e *StaleStateError) Error() string {
	return fmt.Sprintf("escalation %s: transition %s→%s rejected (record is %s)",
		e.EscalationID, e.From, e.To, e.Actual)
}

// ResumptionFailure reports that re-invoking the origin agent threw after the
// decision was recorded. The escalation remains RESOLVED for manual retry;
// this is the only error class requiring operator alerting, since it
// represents an approved action that did not reach the end user.
type ResumptionFailure struct {
	EscalationID string
	Stage        string // "reinvoke", "deliver"
	Err          error
}

// Error implements the error interface.
func (e *ResumptionFailure) Error() string {
	return fmt.Sprintf("resumption of escalation %s failed at %s: %v", e.EscalationID, e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ResumptionFailure) Unwrap() error { return e.Err }
