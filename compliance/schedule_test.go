package compliance

import (
	"testing"
	"time"
)

// Wed Jun 4 2025; Jun 30 2025 is the last day of the month (a Monday).
func wedAt(hour, min int) time.Time {
	return time.Date(2025, time.June, 4, hour, min, 0, 0, time.UTC)
}

func TestMatches_HourAndWeekday(t *testing.T) {
	tests := []struct {
		expr string
		at   time.Time
		want bool
	}{
		{"10 Wed", wedAt(10, 0), true},
		{"10 Wed", wedAt(10, 15), false},
		{"10 Wed", wedAt(11, 0), false},
		{"10 Tue", wedAt(10, 0), false},
		{"10:00,9 Wed", wedAt(9, 0), true},
		{"10:00,9 Wed", wedAt(10, 0), true},
		{"9:30 Wed", wedAt(9, 30), true}, // single-digit hour with minutes
		{"9:30 Wed", wedAt(9, 0), false},
		{"09:30 Wed", wedAt(9, 30), true},
		{"9 wed", wedAt(9, 0), true},  // weekday case-insensitive
		{"09 Wed", wedAt(9, 0), true}, // two-digit bare hour
		{"17:30 Wed", wedAt(17, 30), true},
		{"17:30 Wed", wedAt(17, 0), false},
		{"* Wed", wedAt(23, 59), true},
		{"10 *", wedAt(10, 0), true},
		{"* *", wedAt(3, 41), true},
		{"10 Mon,Wed,Fri", wedAt(10, 0), true},
		{"10 Mon,Fri", wedAt(10, 0), false},
	}
	for _, tc := range tests {
		if got := Matches(tc.expr, tc.at); got != tc.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tc.expr, tc.at, got, tc.want)
		}
	}
}

func TestMatches_EndOfMonth(t *testing.T) {
	lastDay := time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)
	midMonth := time.Date(2025, time.June, 15, 9, 0, 0, 0, time.UTC)
	leapFeb := time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)

	if !Matches("9 EOM", lastDay) {
		t.Error("expected match on the last day of the month")
	}
	if Matches("9 EOM", midMonth) {
		t.Error("expected no match mid-month")
	}
	if !Matches("9 eom", leapFeb) {
		t.Error("expected match on Feb 29 of a leap year")
	}
	if !Matches("9 Mon,EOM", midMonth.AddDate(0, 0, 1)) { // Jun 16 2025 is a Monday
		t.Error("expected the Mon token to match inside a mixed list")
	}
}

func TestMatches_MalformedExpressions(t *testing.T) {
	// Fewer than two fields is a caller contract violation: defensively
	// false, never a panic.
	for _, expr := range []string{"", "10", "   ", "Wed"} {
		if Matches(expr, wedAt(10, 0)) {
			t.Errorf("Matches(%q) = true, want false", expr)
		}
	}
	// Garbage tokens simply never match.
	if Matches("banana Wed", wedAt(10, 0)) {
		t.Error("expected garbage time token not to match")
	}
	if Matches("10 Wednesday", wedAt(10, 0)) {
		t.Error("expected full weekday name not to match (3-letter only)")
	}
}

func TestIsEndOfMonthExpr(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"9 EOM", true},
		{"9 eom", true},
		{"9 Mon,EOM", true},
		{"9 Mon", false},
		{"9", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsEndOfMonthExpr(tc.expr); got != tc.want {
			t.Errorf("IsEndOfMonthExpr(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}
