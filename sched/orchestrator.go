/*
Package sched drives the periodic compliance passes.

PURPOSE:
  The orchestrator walks every configured notification rule once per pass:
  gate on the rule's schedule expression first (cheap short-circuit), then
  compute or reuse the deficiency list for the rule's state+recipient key,
  then dispatch to the rule's chat spaces or its recipient email. A
  separate statistics rule snapshots the deficiency list without notifying
  anyone.

RUN CACHE:
  Rules that share a state and recipient but differ only in delivery
  channel would otherwise recompute the same deficiency list. The cache is
  an explicit map created by the caller for exactly one pass - never a
  process-wide singleton - so passes cannot leak into each other and tests
  can inspect it.

FAILURE ISOLATION:
  A failing rule is logged and skipped; the pass continues with the
  remaining rules and the collected errors come back joined. Configuration
  problems (unknown state, missing recipient) only ever cost the one rule.
  Each rule also runs under a bounded timeout so a stalled collaborator
  cannot wedge the whole pass.
*/
package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/notify"
)

// =============================================================================
// RULE TYPES - Externally configured, read-only per pass
// =============================================================================

// Rule is one configured notification run.
type Rule struct {
	Schedule          string   `yaml:"schedule" validate:"required"`
	Recipient         string   `yaml:"recipient" validate:"omitempty,email"`
	State             string   `yaml:"state" validate:"required"`
	Spaces            []string `yaml:"spaces"`
	Departments       []string `yaml:"departments"`
	NotifyIndividuals bool     `yaml:"notify_individuals"`
	NotifyByEmail     bool     `yaml:"notify_by_email"`
}

// StatisticsRule configures the write-only telemetry snapshot.
type StatisticsRule struct {
	Schedule  string `yaml:"schedule" validate:"required"`
	Recipient string `yaml:"recipient" validate:"omitempty,email"`
	State     string `yaml:"state" validate:"required"`
}

// RuleSet is everything one pass consumes.
type RuleSet struct {
	Rules             []Rule          `yaml:"rules"`
	Statistics        *StatisticsRule `yaml:"statistics"`
	ExcludedCustomers []string        `yaml:"excluded_customers"`
}

// RuleSource supplies the rule set at the start of each pass, so edits to
// the rules file take effect without a restart.
type RuleSource interface {
	Load() (RuleSet, error)
}

// =============================================================================
// STATISTICS SNAPSHOT
// =============================================================================

type SnapshotEntry struct {
	UserName       string
	ManagerName    string
	DepartmentName string
	State          string
}

type Snapshot struct {
	ID      string
	TakenAt time.Time
	State   string
	Entries []SnapshotEntry
}

// StatisticsStore persists snapshots. Append-only telemetry; nothing in the
// notification path reads it back.
type StatisticsStore interface {
	AppendSnapshot(ctx context.Context, snapshot Snapshot) error
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// RunCache memoizes deficiency lists within a single pass, keyed by
// state + "_" + recipient. Create a fresh one per pass.
type RunCache map[string][]compliance.Deficiency

const DefaultRuleTimeout = 2 * time.Minute

// Orchestrator runs all configured rules for one pass.
type Orchestrator struct {
	Engine      *compliance.Engine
	Dispatcher  *notify.Dispatcher
	Chat        notify.ChatPlatform
	Stats       StatisticsStore
	Rules       RuleSource
	RuleTimeout time.Duration
	Log         *logrus.Logger
}

// RunScheduledPass evaluates every rule against now and dispatches the due
// ones. The cache must be scoped to this single call.
func (o *Orchestrator) RunScheduledPass(ctx context.Context, now time.Time, cache RunCache) error {
	ruleSet, err := o.Rules.Load()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	targets := make(map[string]*notify.ChatTarget) // pass-scoped space resolution cache
	var errs []error

	for i, rule := range ruleSet.Rules {
		if !compliance.Matches(rule.Schedule, now) {
			continue
		}
		if err := o.runRule(ctx, rule, now, cache, targets, ruleSet.ExcludedCustomers); err != nil {
			if compliance.IsConfigError(err) {
				o.logFor(rule).Warnf("rule %d skipped: %v", i, err)
				continue
			}
			o.logFor(rule).Errorf("rule %d failed: %v", i, err)
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}

	if err := o.runStatistics(ctx, ruleSet, now, cache); err != nil {
		errs = append(errs, fmt.Errorf("statistics: %w", err))
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) runRule(ctx context.Context, rule Rule, now time.Time, cache RunCache, targets map[string]*notify.ChatTarget, excludedCustomers []string) error {
	state, err := compliance.ParseReportState(rule.State)
	if err != nil {
		return err
	}
	if rule.Recipient == "" && len(rule.Spaces) == 0 {
		return compliance.ErrMissingRecipient
	}

	ruleCtx, cancel := context.WithTimeout(ctx, o.ruleTimeout())
	defer cancel()

	deficiencies, err := o.deficienciesFor(ruleCtx, state, rule.Recipient, rule.Schedule, now, cache, excludedCustomers)
	if err != nil {
		return err
	}

	opts := notify.Options{
		RecipientEmail:     rule.Recipient,
		DepartmentFilter:   rule.Departments,
		NotifyIndividually: rule.NotifyIndividuals,
		NotifyByEmail:      rule.NotifyByEmail,
		State:              state,
	}

	if len(rule.Spaces) == 0 {
		_, err := o.Dispatcher.Notify(ruleCtx, deficiencies, opts)
		return err
	}

	for _, space := range rule.Spaces {
		name := NormalizeSpaceName(space)
		target, ok := targets[name]
		if !ok {
			target, err = o.Chat.ResolveSpaceByName(ruleCtx, name)
			if err != nil {
				return fmt.Errorf("resolve space %s: %w", name, err)
			}
			targets[name] = target
		}
		if target == nil {
			o.logFor(rule).Warnf("space %s not found, skipping", name)
			continue
		}
		opts.ChatTarget = target
		if _, err := o.Dispatcher.Notify(ruleCtx, deficiencies, opts); err != nil {
			return err
		}
	}
	return nil
}

// runStatistics evaluates the global statistics rule and persists one
// snapshot row per deficient user. Write-only; notification logic never
// reads these back.
func (o *Orchestrator) runStatistics(ctx context.Context, ruleSet RuleSet, now time.Time, cache RunCache) error {
	stats := ruleSet.Statistics
	if stats == nil || o.Stats == nil {
		return nil
	}
	if !compliance.Matches(stats.Schedule, now) {
		return nil
	}
	state, err := compliance.ParseReportState(stats.State)
	if err != nil {
		return err
	}

	statsCtx, cancel := context.WithTimeout(ctx, o.ruleTimeout())
	defer cancel()

	deficiencies, err := o.deficienciesFor(statsCtx, state, stats.Recipient, stats.Schedule, now, cache, ruleSet.ExcludedCustomers)
	if err != nil {
		return err
	}

	snapshot := Snapshot{
		ID:      uuid.NewString(),
		TakenAt: now,
		State:   state.String(),
	}
	for _, def := range deficiencies {
		snapshot.Entries = append(snapshot.Entries, SnapshotEntry{
			UserName:       def.UserName,
			ManagerName:    def.ManagerName,
			DepartmentName: def.Department,
			State:          state.String(),
		})
	}
	return o.Stats.AppendSnapshot(statsCtx, snapshot)
}

// deficienciesFor computes the deficiency list for a state+recipient key,
// reusing the pass cache when another rule already paid for it.
func (o *Orchestrator) deficienciesFor(ctx context.Context, state compliance.ReportState, recipient, schedule string, now time.Time, cache RunCache, excludedCustomers []string) ([]compliance.Deficiency, error) {
	runKey := state.String() + "_" + recipient
	if cached, ok := cache[runKey]; ok {
		return cached, nil
	}
	deficiencies, err := o.Engine.ComputeDeficiencies(
		ctx, state, compliance.DateOf(now), recipient,
		true, excludedCustomers, compliance.IsEndOfMonthExpr(schedule),
	)
	if err != nil {
		return nil, err
	}
	cache[runKey] = deficiencies
	return deficiencies, nil
}

func (o *Orchestrator) ruleTimeout() time.Duration {
	if o.RuleTimeout > 0 {
		return o.RuleTimeout
	}
	return DefaultRuleTimeout
}

func (o *Orchestrator) logFor(rule Rule) *logrus.Entry {
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithFields(logrus.Fields{
		"state":     rule.State,
		"recipient": rule.Recipient,
	})
}

// NormalizeSpaceName expands a bare space id into the platform's
// fully-qualified "spaces/<id>" form.
func NormalizeSpaceName(space string) string {
	if strings.HasPrefix(space, "spaces/") {
		return space
	}
	return "spaces/" + space
}
