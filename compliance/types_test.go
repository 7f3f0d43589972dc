package compliance

import (
	"errors"
	"testing"
)

// The normalization table is exercised exhaustively: every accepted spelling
// maps to its state, everything else errors.
func TestParseReportState(t *testing.T) {
	accepted := map[string]ReportState{
		"unsubmitted":       StateUnsubmitted,
		"Unsubmitted":       StateUnsubmitted,
		"NOT SUBMITTED":     StateUnsubmitted,
		"notsubmitted":      StateUnsubmitted,
		"unlogged":          StateUnsubmitted,
		"open":              StateUnsubmitted,
		"  unsubmitted  ":   StateUnsubmitted,
		"not   submitted":   StateUnsubmitted, // interior whitespace collapses
		"unapproved":        StateUnapproved,
		"Not Approved":      StateUnapproved,
		"notapproved":       StateUnapproved,
		"awaiting approval": StateUnapproved,
		"Pending Approval":  StateUnapproved,
	}
	for input, want := range accepted {
		got, err := ParseReportState(input)
		if err != nil {
			t.Errorf("ParseReportState(%q): unexpected error %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseReportState(%q) = %v, want %v", input, got, want)
		}
	}

	for _, input := range []string{"", "approved", "submitted", "banana", "un-submitted"} {
		if _, err := ParseReportState(input); !errors.Is(err, ErrUnknownReportState) {
			t.Errorf("ParseReportState(%q): expected ErrUnknownReportState, got %v", input, err)
		}
	}
}
