/*
schedule.go - Compact recurrence expression matching

PURPOSE:
  Evaluates the two-field schedule expression that gates notification
  rules: "time-of-day weekday". Both fields accept comma lists and "*".

GRAMMAR:
  time-of-day:  "*" | "9" | "09" | "9:30" | "H:MM"  (bare hours normalize
                to H:00; single-digit hours zero-pad in both forms)
  weekday:      "*" | "Mon".."Sun" (case-insensitive 3-letter) | "EOM"
                (fires only on the last calendar day of the month)

  "17:00 Fri"        every Friday at 17:00
  "9,13 Mon,Wed"     Mondays and Wednesdays at 09:00 and 13:00
  "10 EOM"           10:00 on the last day of the month
  "* *"              every evaluation tick

  Matching is exact to the minute against the timestamp formatted HH:mm.
  Malformed expressions (fewer than two fields) match nothing; the matcher
  never panics on bad input.
*/
package compliance

import (
	"strings"
	"time"
)

// Matches reports whether the schedule expression fires at the given instant.
func Matches(expr string, at time.Time) bool {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) < 2 {
		return false
	}
	return matchTimeOfDay(fields[0], at) && matchWeekday(fields[1], at)
}

// IsEndOfMonthExpr reports whether the expression's weekday field carries the
// EOM token. Rules gated on EOM run end-of-month proration (see hours.go).
func IsEndOfMonthExpr(expr string) bool {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) < 2 {
		return false
	}
	for _, tok := range strings.Split(fields[1], ",") {
		if strings.EqualFold(strings.TrimSpace(tok), "EOM") {
			return true
		}
	}
	return false
}

func matchTimeOfDay(field string, at time.Time) bool {
	clock := at.Format("15:04")
	for _, tok := range strings.Split(field, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "*" {
			return true
		}
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			// Single-digit hours zero-pad to the HH:mm clock format.
			if i == 1 {
				tok = "0" + tok
			}
		} else {
			if len(tok) == 1 {
				tok = "0" + tok
			}
			tok += ":00"
		}
		if tok == clock {
			return true
		}
	}
	return false
}

func matchWeekday(field string, at time.Time) bool {
	day := at.Format("Mon")
	for _, tok := range strings.Split(field, ",") {
		tok = strings.TrimSpace(tok)
		switch {
		case tok == "*":
			return true
		case strings.EqualFold(tok, "EOM"):
			if IsLastDayOfMonth(at) {
				return true
			}
		case strings.EqualFold(tok, day):
			return true
		}
	}
	return false
}
