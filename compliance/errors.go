/*
errors.go - Error types for the compliance core

PURPOSE:
  Sentinel errors shared across the engine. Callers branch with errors.Is;
  call sites wrap with fmt.Errorf("...: %w", err) for context.

ERROR CATEGORIES:
  1. Configuration errors - bad states, schedules, recipients; a rule
     carrying one of these is skipped, never fatal to a pass
  2. Collaborator failures - the timesheet service or directory failed;
     these propagate out of the failing rule's processing
*/
package compliance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownReportState is returned when a configured state string has
	// no entry in the normalization table.
	ErrUnknownReportState = errors.New("unknown report state")

	// ErrMissingRecipient is returned for a rule with neither a recipient
	// email nor a chat space to deliver to.
	ErrMissingRecipient = errors.New("rule has no recipient or space")

	// ErrMalformedSchedule is returned for schedule expressions that do not
	// have the two required fields. The matcher itself degrades to false;
	// this error exists for configuration validation.
	ErrMalformedSchedule = errors.New("malformed schedule expression")

	// ErrTimesheetFetch wraps failures from the timesheet service.
	ErrTimesheetFetch = errors.New("timesheet fetch failed")

	// ErrDirectoryFetch wraps failures from the user directory.
	ErrDirectoryFetch = errors.New("directory fetch failed")
)

// IsConfigError reports whether the error is a rule-configuration problem
// (skip the rule) as opposed to a collaborator failure (surface it).
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownReportState) ||
		errors.Is(err, ErrMissingRecipient) ||
		errors.Is(err, ErrMalformedSchedule)
}

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UserComputeError records a per-user computation failure inside the engine.
// These never abort a batch; the affected user is collapsed to a default at
// the boundary, but the error stays visible to tests and logs.
type UserComputeError struct {
	UserID string
	Email  string
	Cause  error
}

func (e *UserComputeError) Error() string {
	return fmt.Sprintf("user %s (%s): %v", e.UserID, e.Email, e.Cause)
}

func (e *UserComputeError) Unwrap() error { return e.Cause }
