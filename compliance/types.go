/*
Package compliance implements the timesheet compliance core.

PURPOSE:
  This package contains the pure computation underneath the notification
  engine: how many hours an employee was required to log, who in the
  reporting chain may see whose timesheet, whether a schedule expression
  fires at a given instant, and which employees are behind on their hours.

KEY CONCEPTS IN THIS FILE (types.go):
  - ReportState: Fixed enumeration of timesheet states with a normalization
    table for the free-text synonyms that arrive from configuration
  - UserRecord: Read-only snapshot of an employee from the directory sync
  - RawEntry: One timesheet line as returned by the timesheet service
  - Deficiency: An employee whose logged hours fall short of required hours

DESIGN PRINCIPLES:
  1. Purity: Everything here is deterministic over its inputs; the only
     side effects live behind the TimesheetSource and Directory interfaces
  2. Precision: Logged hours use decimal.Decimal so fractional entries
     (7.5h) aggregate exactly
  3. Defensiveness: Directory data is sync-produced and may be malformed;
     manager chains can cycle, departments can be missing

SEE ALSO:
  - hours.go: Required-hours proration
  - chain.go: Reporting-chain visibility
  - schedule.go: Recurrence expression matching
  - engine.go: Deficiency computation over the collaborator interfaces
*/
package compliance

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT STATE - Fixed enumeration with synonym normalization
// =============================================================================

// ReportState identifies which timesheet shortfall a run is checking.
type ReportState string

const (
	// StateUnsubmitted checks the current week: hours the employee has
	// submitted (or that were already approved) against their quota.
	StateUnsubmitted ReportState = "unsubmitted"

	// StateUnapproved checks the prior week: hours that made it through
	// approval against the quota.
	StateUnapproved ReportState = "unapproved"
)

// stateSynonyms maps the free-text spellings accepted from configuration
// onto the enumeration. Lookup is lowercase with spaces collapsed.
var stateSynonyms = map[string]ReportState{
	"unsubmitted":      StateUnsubmitted,
	"not submitted":    StateUnsubmitted,
	"notsubmitted":     StateUnsubmitted,
	"unlogged":         StateUnsubmitted,
	"open":             StateUnsubmitted,
	"unapproved":       StateUnapproved,
	"not approved":     StateUnapproved,
	"notapproved":      StateUnapproved,
	"awaiting approval": StateUnapproved,
	"pending approval": StateUnapproved,
}

// ParseReportState normalizes a free-text state spelling to its enum value.
func ParseReportState(s string) (ReportState, error) {
	key := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
	if state, ok := stateSynonyms[key]; ok {
		return state, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportState, s)
}

func (s ReportState) String() string { return string(s) }

// =============================================================================
// TIMESHEET ENTRY STATUSES - As reported by the timesheet service
// =============================================================================

const (
	EntryStatusOpen      = "open"
	EntryStatusSubmitted = "submitted"
	EntryStatusApproved  = "approved"
)

// =============================================================================
// USER DIRECTORY TYPES - Produced by the external directory sync, read-only
// =============================================================================

// UserRef is a loose reference to another directory user. The sync process
// populates whichever of ID and Email it had at hand, so resolution tries
// both (see chain.go).
type UserRef struct {
	ID    string
	Email string
	Name  string
}

// DepartmentRef names a user's department and its owner, either of which
// may be absent in freshly-synced data.
type DepartmentRef struct {
	Name  string
	Owner *UserRef
}

// UserRecord is one employee as seen by the directory sync.
// Manager chains are NOT guaranteed acyclic; consumers must guard.
type UserRecord struct {
	ID              string
	Email           string
	DisplayName     string
	WeeklyHourQuota int        // 0 means unset; DefaultWeeklyQuota applies
	EmploymentStart *TimePoint // nil when unknown
	Manager         *UserRef
	Department      DepartmentRef
	Customers       []string // customer affiliations, used as a denylist filter
	Active          bool
}

// =============================================================================
// TIMESHEET AGGREGATES
// =============================================================================

// RawEntry is a single timesheet line fetched from the timesheet service.
type RawEntry struct {
	UserID    string
	Status    string
	Hours     decimal.Decimal
	StartDate TimePoint
}

// TimesheetTotal is the per-user aggregate for one report week. Derived
// transiently inside the engine, never persisted.
type TimesheetTotal struct {
	UserID    string
	Logged    decimal.Decimal
	WeekStart TimePoint
}

// Deficiency is an employee who is behind on their hours for the evaluated
// period. Immutable value; recomputed each run.
type Deficiency struct {
	UserName    string
	UserEmail   string
	Department  string
	ManagerName string
	Logged      decimal.Decimal
	Required    int
}

// =============================================================================
// COLLABORATOR INTERFACES - Implemented elsewhere (clients/, store/)
// =============================================================================

// TimesheetSource fetches raw timesheet entries from the timesheet service.
type TimesheetSource interface {
	// FetchByStatus returns entries with the given status whose start date
	// falls in [from, to).
	FetchByStatus(ctx context.Context, from, to TimePoint, status string) ([]RawEntry, error)
}

// Directory fetches the active-user directory maintained by the sync process.
type Directory interface {
	FetchActiveUsers(ctx context.Context) ([]UserRecord, error)
}
