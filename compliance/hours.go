/*
hours.go - Required-hours proration

PURPOSE:
  Computes how many hours an employee was required to have logged by the
  report date. Three cases, checked in order:

  1. Started this week: the employee owes only the days since their start
     date, inclusive of the start day itself.
  2. End-of-month run: the month closed mid-week, so the employee owes only
     the working days elapsed so far this week.
  3. Otherwise: a full five-day week.

  requiredHours = floor(quota / 5) * requiredDays

  Pure and deterministic; all inputs are sanitized by the caller.
*/
package compliance

import "time"

const (
	// DefaultWeeklyQuota applies when a user record carries no quota.
	DefaultWeeklyQuota = 40

	workdaysPerWeek = 5
)

// RequiredHours returns the hours a user must have logged by reportDate.
func RequiredHours(quotaPerWeek int, startDate *TimePoint, reportDate, weekStart TimePoint, endOfMonthRun bool, todayWeekday time.Weekday) int {
	if quotaPerWeek <= 0 {
		quotaPerWeek = DefaultWeeklyQuota
	}

	requiredDays := workdaysPerWeek
	switch {
	case startDate != nil && startDate.AfterOrEqual(weekStart) && startDate.BeforeOrEqual(reportDate):
		// Partial first week: the start day itself counts.
		requiredDays = DaysBetween(*startDate, reportDate) + 1
	case endOfMonthRun:
		requiredDays = workdayOrdinal(todayWeekday)
	}

	return quotaPerWeek / workdaysPerWeek * requiredDays
}

// workdayOrdinal maps a weekday to how many working days have elapsed this
// week, with the weekend collapsed to a full five.
func workdayOrdinal(wd time.Weekday) int {
	if wd == time.Saturday || wd == time.Sunday {
		return workdaysPerWeek
	}
	return int(wd) // Monday=1 .. Friday=5
}
