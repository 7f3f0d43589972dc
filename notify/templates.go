/*
templates.go - Message content for the notification dispatcher

PURPOSE:
  All user-facing text in one place. Three families:

  1. All-compliant messages: picked pseudo-randomly from a fixed pool per
     state, so the happy path stays a closed set tests can assert against.
  2. Summary templates: three tiers (all notified / some notified / none
     notified) composed with the formatted shortfall list.
  3. The per-user chat nudge and the batch email reminder.

  The wording here is load-bearing: downstream chat rooms archive these
  reports, so structure changes are breaking.
*/
package notify

import (
	"fmt"
	"strings"

	"github.com/warp/compliance-engine/compliance"
)

// =============================================================================
// ALL-COMPLIANT POOL - Closed set, one entry picked per run
// =============================================================================

var allCompliantPool = map[compliance.ReportState][]string{
	compliance.StateUnsubmitted: {
		"Everyone has their hours in. Nothing to nag about today. 🎉",
		"All timesheets submitted — the streak lives on!",
		"Zero stragglers this week. Submit button fans, every one of them.",
	},
	compliance.StateUnapproved: {
		"Every submitted timesheet has been approved. Managers, take a bow. 🎉",
		"Approval queue is empty — all hours signed off.",
		"Nothing awaiting approval. Smooth sailing this week.",
	},
}

// allCompliantMessage returns the nth pooled message for the state, wrapping
// the index into range. Unknown states fall back to the unsubmitted pool.
func allCompliantMessage(state compliance.ReportState, n int) string {
	pool, ok := allCompliantPool[state]
	if !ok {
		pool = allCompliantPool[compliance.StateUnsubmitted]
	}
	if n < 0 {
		n = -n
	}
	return pool[n%len(pool)]
}

// AllCompliantPool exposes the closed message set for a state. Intended for
// verification; delivery always goes through the dispatcher.
func AllCompliantPool(state compliance.ReportState) []string {
	pool, ok := allCompliantPool[state]
	if !ok {
		pool = allCompliantPool[compliance.StateUnsubmitted]
	}
	out := make([]string, len(pool))
	copy(out, pool)
	return out
}

// =============================================================================
// SUMMARY TEMPLATES - Three outcome tiers
// =============================================================================

const (
	allNotifiedTemplate  = "All %d employees behind on %s hours have been notified."
	someNotifiedTemplate = "Notified %d of %d employees behind on %s hours. Still unreached:"
	noneNotifiedTemplate = "The following employees are behind on %s hours:"
)

const (
	directNudgeTemplate = "Hi %s! You've logged %s of %d required hours (%s). Please bring your timesheet up to date."

	reminderSubject = "Timesheet reminder"
	reminderBody    = "Your timesheet is behind for the current reporting period. Please log and submit your remaining hours."
)

// formatShortfallList renders one line per deficiency:
//
//	- Jane Doe: 12/40h, Engineering, manager Alex Chen
func formatShortfallList(deficiencies []compliance.Deficiency) string {
	var b strings.Builder
	for _, d := range deficiencies {
		manager := d.ManagerName
		if manager == "" {
			manager = "unassigned"
		}
		fmt.Fprintf(&b, "- %s: %s/%dh, %s, manager %s\n", d.UserName, d.Logged.String(), d.Required, department(d), manager)
	}
	return strings.TrimRight(b.String(), "\n")
}

func department(d compliance.Deficiency) string {
	if d.Department == "" {
		return "no department"
	}
	return d.Department
}
