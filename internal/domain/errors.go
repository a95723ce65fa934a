package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Every typed error below unwraps to one of these so callers
// can branch with errors.Is without knowing the concrete type.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrCapacity      = errors.New("no capacity")
	ErrDependency    = errors.New("dependency failure")
	ErrForbidden     = errors.New("forbidden")
)

// ValidationError reports a malformed request field. Raised before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an unknown reservation or session id.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictKind distinguishes the reasons an operation is invalid for the current state.
type ConflictKind string

const (
	ConflictIllegalTransition     ConflictKind = "illegal_transition"
	ConflictOverlap               ConflictKind = "overlap"
	ConflictChargerBusy           ConflictKind = "charger_busy"
	ConflictAlreadyCheckedIn      ConflictKind = "already_checked_in"
	ConflictCheckInTooEarly       ConflictKind = "check_in_too_early"
	ConflictCheckInDeadlinePassed ConflictKind = "check_in_deadline_passed"
	ConflictNotCharging           ConflictKind = "not_charging"
	ConflictNotCompleted          ConflictKind = "not_completed"
)

// StateConflictError reports an operation that is not allowed in the entity's current status.
type StateConflictError struct {
	Kind    ConflictKind
	Message string
}

func NewStateConflictError(kind ConflictKind, format string, args ...interface{}) *StateConflictError {
	return &StateConflictError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// CapacityError reports that no charger at the station can serve the requested window.
type CapacityError struct {
	StationID string
	Start     time.Time
	End       time.Time
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("no charger available at station %s between %s and %s",
		e.StationID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

// DependencyError wraps a failed or declined call to a hard collaborator.
type DependencyError struct {
	Collaborator string
	Op           string
	Err          error
}

func NewDependencyError(collaborator, op string, err error) *DependencyError {
	return &DependencyError{Collaborator: collaborator, Op: op, Err: err}
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Collaborator, e.Op, e.Err)
}

func (e *DependencyError) Unwrap() []error { return []error{ErrDependency, e.Err} }

// IsConflict reports whether err is a StateConflictError of the given kind.
func IsConflict(err error, kind ConflictKind) bool {
	var sc *StateConflictError
	return errors.As(err, &sc) && sc.Kind == kind
}
