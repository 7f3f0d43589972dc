/*
engine.go - Deficiency computation

PURPOSE:
  Orchestrates one compliance computation: fetch raw timesheet totals for a
  state and week window, fetch the active directory, filter to the users
  the requester may see, prorate required hours per user, and emit everyone
  who is under quota, deterministically ordered.

FAILURE SEMANTICS:
  - Timesheet or directory fetch failures propagate to the caller; no
    retries at this layer.
  - Per-user failures never abort the batch. Each user is evaluated into an
    explicit result; a failed evaluation collapses to the full default
    quota for that user (visible in logs, covered by tests).

ORDERING:
  Results are sorted by manager name, then user name, byte-wise, so a
  report produced twice from the same data reads identically.
*/
package compliance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine computes deficiency lists over the collaborator interfaces.
type Engine struct {
	Timesheets TimesheetSource
	Directory  Directory
	Log        *logrus.Logger
}

// Seams for the per-user recovery paths. Directory data has produced
// panics here before; tests swap these to reproduce one.
var (
	requiredHoursFn = RequiredHours
	canViewFn       = CanView
)

// userResult is the explicit per-user outcome of required-hours evaluation.
// Kept internal; the boundary collapses failures to defaults.
type userResult struct {
	user     UserRecord
	required int
	logged   decimal.Decimal
	err      error
}

// ComputeDeficiencies returns every user visible to requesterEmail whose
// logged hours for the state's window fall short of their required hours.
func (e *Engine) ComputeDeficiencies(ctx context.Context, state ReportState, reportDate TimePoint, requesterEmail string, excludeSelf bool, excludedCustomers []string, endOfMonthRun bool) ([]Deficiency, error) {
	weekStart := reportDate.StartOfWeek()

	totals, err := e.fetchTotals(ctx, state, weekStart, reportDate)
	if err != nil {
		return nil, err
	}

	directory, err := e.Directory.FetchActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryFetch, err)
	}

	var results []userResult
	for _, user := range directory {
		if !e.includeUser(directory, user, reportDate, requesterEmail, excludeSelf, excludedCustomers) {
			continue
		}
		results = append(results, e.evaluateUser(user, totals, reportDate, weekStart, endOfMonthRun))
	}

	var deficiencies []Deficiency
	for _, r := range results {
		if r.err != nil && e.Log != nil {
			e.Log.WithFields(logrus.Fields{
				"user":  r.user.Email,
				"state": state,
			}).Warnf("per-user computation degraded to default quota: %v", r.err)
		}
		if r.logged.LessThan(decimal.NewFromInt(int64(r.required))) {
			deficiencies = append(deficiencies, Deficiency{
				UserName:    r.user.DisplayName,
				UserEmail:   r.user.Email,
				Department:  r.user.Department.Name,
				ManagerName: managerName(directory, r.user),
				Logged:      r.logged,
				Required:    r.required,
			})
		}
	}

	sort.SliceStable(deficiencies, func(i, j int) bool {
		if deficiencies[i].ManagerName != deficiencies[j].ManagerName {
			return deficiencies[i].ManagerName < deficiencies[j].ManagerName
		}
		return deficiencies[i].UserName < deficiencies[j].UserName
	})
	return deficiencies, nil
}

// fetchTotals pulls raw entries for the state's window and aggregates logged
// hours per user. Unsubmitted checks the current week and counts submitted
// plus already-approved hours; unapproved checks the prior week and counts
// only approved hours.
func (e *Engine) fetchTotals(ctx context.Context, state ReportState, weekStart, reportDate TimePoint) (map[string]decimal.Decimal, error) {
	var (
		windowStart, windowEnd TimePoint
		statuses               []string
	)
	switch state {
	case StateUnapproved:
		windowStart = weekStart.AddDays(-7)
		windowEnd = weekStart
		statuses = []string{EntryStatusApproved}
	default: // StateUnsubmitted
		windowStart = weekStart
		windowEnd = reportDate.AddDays(1)
		statuses = []string{EntryStatusSubmitted, EntryStatusApproved}
	}

	counted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		counted[s] = true
	}

	totals := make(map[string]decimal.Decimal)
	for _, status := range statuses {
		entries, err := e.Timesheets.FetchByStatus(ctx, windowStart, windowEnd, status)
		if err != nil {
			return nil, fmt.Errorf("%w: status %s: %v", ErrTimesheetFetch, status, err)
		}
		for _, entry := range entries {
			if !entry.StartDate.After(windowStart) {
				continue
			}
			if !counted[entry.Status] {
				continue
			}
			totals[entry.UserID] = totals[entry.UserID].Add(entry.Hours)
		}
	}
	return totals, nil
}

// includeUser applies the directory filters in order. Any panic while
// evaluating one user excludes that user and never aborts the batch; the
// directory sync has produced nil-riddled records before.
func (e *Engine) includeUser(directory []UserRecord, user UserRecord, reportDate TimePoint, requesterEmail string, excludeSelf bool, excludedCustomers []string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if e.Log != nil {
				e.Log.WithField("user", user.Email).Warnf("excluded after filter panic: %v", r)
			}
			ok = false
		}
	}()

	if user.EmploymentStart != nil && user.EmploymentStart.After(reportDate) {
		return false
	}
	if excludeSelf && strings.EqualFold(user.Email, requesterEmail) {
		return false
	}
	if user.Manager == nil {
		return false
	}
	if !canViewFn(directory, user, requesterEmail) {
		return false
	}
	for _, customer := range user.Customers {
		for _, excluded := range excludedCustomers {
			if strings.EqualFold(customer, excluded) {
				return false
			}
		}
	}
	return true
}

// evaluateUser pairs a user with their aggregated hours and required hours.
// A panic during proration degrades the user to the full default quota.
func (e *Engine) evaluateUser(user UserRecord, totals map[string]decimal.Decimal, reportDate, weekStart TimePoint, endOfMonthRun bool) (result userResult) {
	result = userResult{user: user, logged: totals[user.ID]}

	defer func() {
		if r := recover(); r != nil {
			result.required = DefaultWeeklyQuota
			result.err = &UserComputeError{UserID: user.ID, Email: user.Email, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	result.required = requiredHoursFn(user.WeeklyHourQuota, user.EmploymentStart, reportDate, weekStart, endOfMonthRun, reportDate.Weekday())
	return result
}

// managerName resolves the display name of a user's manager, falling back to
// whatever the reference itself carries.
func managerName(directory []UserRecord, user UserRecord) string {
	if user.Manager == nil {
		return ""
	}
	if manager := resolveRef(directory, user.Manager); manager != nil {
		return manager.DisplayName
	}
	if user.Manager.Name != "" {
		return user.Manager.Name
	}
	return user.Manager.Email
}
