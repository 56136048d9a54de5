/*
errors.go - Error taxonomy for the points engine

PURPOSE:
  Callers must be able to tell "you can't do this right now" apart from
  "something went wrong". Every failure the engine returns belongs to one
  of five kinds:

    ValidationError          malformed input, caller bug, never retried
    NotFoundError            stale catalog/child reference, refresh and retry
    EligibilityError         expected business outcome (daily cap reached)
    InsufficientPointsError  expected business outcome (can't afford reward)
    StorageError             store unreachable, caller may retry with backoff

  Each structured type unwraps to a sentinel so errors.Is works through
  any amount of fmt.Errorf("...: %w") wrapping.

USAGE:
  _, err := recorder.RecordBehavior(ctx, child, item, day, "")
  var elig *points.EligibilityError
  if errors.As(err, &elig) {
      fmt.Println(elig.Reason) // DailyLimitReached
  }

SEE ALSO:
  - api/handlers.go: maps Kind(err) to HTTP status
*/
package points

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrIneligible         = errors.New("not eligible")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrStorage            = errors.New("storage failure")
)

// Kind names used on the wire.
const (
	KindValidation         = "ValidationError"
	KindNotFound           = "NotFoundError"
	KindEligibility        = "EligibilityError"
	KindInsufficientPoints = "InsufficientPointsError"
	KindStorage            = "StorageError"
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names what was missing. Kind is "child", "behavior",
// "reward", "family" or "activity".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type EligibilityError struct {
	Reason  Reason
	ChildID ChildID
	ItemID  ItemID
	Date    Date
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("behavior %s not allowed for child %s on %s: %s", e.ItemID, e.ChildID, e.Date, e.Reason)
}

func (e *EligibilityError) Unwrap() error { return ErrIneligible }

type InsufficientPointsError struct {
	ChildID   ChildID
	Required  int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// StorageError wraps a failure from a store. Op is a short verb phrase.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// storageErr wraps err as a StorageError unless it already carries one of
// the engine's kinds.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindStorage || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind classifies err. Anything unrecognised is a StorageError.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrIneligible):
		return KindEligibility
	case errors.Is(err, ErrInsufficientPoints):
		return KindInsufficientPoints
	default:
		return KindStorage
	}
}

// IsClientError returns true for every kind except storage failures.
func IsClientError(err error) bool {
	return err != nil && Kind(err) != KindStorage
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return err != nil && Kind(err) == KindStorage
}
