/*
dispatcher.go - Deduplicated two-channel notification fan-out

PURPOSE:
  Given a deficiency list, nudge each user over chat where an address can
  be resolved, fall back to one batch email for the rest, and deliver a
  summary with three outcome tiers:

    all compliant -> a pooled happy-path message
    all notified  -> a count, no list
    some missed   -> a count plus the formatted list of unreached users

FAILURE SEMANTICS:
  A chat-send or mail-send failure aborts the remaining fan-out for the
  run; address-book healing already queued is still flushed by the caller
  on the next pass. There is deliberately no per-send retry here - the
  HTTP/SMTP clients own transport robustness.
*/
package notify

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/warp/compliance-engine/compliance"
)

// Options configures one Notify invocation.
type Options struct {
	RecipientEmail     string
	DepartmentFilter   []string // empty = all departments; matched case-insensitively
	NotifyIndividually bool
	NotifyByEmail      bool
	State              compliance.ReportState
	ChatTarget         *ChatTarget // nil = deliver the summary by email only
}

// Report records exactly who was, and was not, reached.
type Report struct {
	Summary         string
	NotifiedByChat  []string // display names, fan-out order
	NotifiedByEmail []string // deduplicated emails
	Unreached       []compliance.Deficiency
}

// Dispatcher sends compliance notifications across chat and email.
type Dispatcher struct {
	Addresses AddressBook
	Chat      ChatPlatform
	Mail      Mailer
	Log       *logrus.Logger

	// pickIndex selects from the all-compliant pool. Defaults to math/rand;
	// overridable so tests can pin the choice.
	pickIndex func(n int) int
}

func NewDispatcher(addresses AddressBook, chat ChatPlatform, mail Mailer, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		Addresses: addresses,
		Chat:      chat,
		Mail:      mail,
		Log:       log,
		pickIndex: rand.Intn,
	}
}

// Notify runs the full dispatch for one rule firing.
func (d *Dispatcher) Notify(ctx context.Context, deficiencies []compliance.Deficiency, opts Options) (*Report, error) {
	deficiencies = filterDepartments(deficiencies, opts.DepartmentFilter)

	if len(deficiencies) == 0 {
		return d.deliverAllCompliant(ctx, opts)
	}

	if !opts.NotifyIndividually {
		summary := noneNotifiedSummary(opts.State, deficiencies)
		report := &Report{Summary: summary, Unreached: deficiencies}
		return report, d.deliverSummary(ctx, report, opts)
	}

	report, err := d.fanOut(ctx, deficiencies, opts)
	if err != nil {
		return report, err
	}
	return report, d.deliverSummary(ctx, report, opts)
}

// deliverAllCompliant picks from the fixed pool and sends it to the chat
// target when one is present. No destination means silence, not an error.
func (d *Dispatcher) deliverAllCompliant(ctx context.Context, opts Options) (*Report, error) {
	pick := d.pickIndex
	if pick == nil {
		pick = rand.Intn
	}
	pool := AllCompliantPool(opts.State)
	summary := allCompliantMessage(opts.State, pick(len(pool)))
	report := &Report{Summary: summary}

	if opts.ChatTarget != nil {
		if err := d.Chat.SendToSpace(ctx, summary, *opts.ChatTarget); err != nil {
			return report, fmt.Errorf("send all-compliant message: %w", err)
		}
	}
	return report, nil
}

// fanOut resolves addresses, sends per-user chat nudges, flushes healed
// records in one batch write, and emails whoever chat could not reach.
func (d *Dispatcher) fanOut(ctx context.Context, deficiencies []compliance.Deficiency, opts Options) (*Report, error) {
	report := &Report{}

	needed := make(map[string]bool, len(deficiencies))
	for _, def := range deficiencies {
		if def.UserEmail != "" {
			needed[strings.ToLower(def.UserEmail)] = true
		}
	}
	resolved, err := resolveAddresses(ctx, d.Addresses, d.Chat, needed)
	if err != nil {
		return report, fmt.Errorf("resolve chat addresses: %w", err)
	}

	notified := make(map[string]bool, len(deficiencies))
	for _, def := range deficiencies {
		addr := resolved.lookup(def.UserEmail, def.UserName)
		if addr == nil {
			continue // stays unreached; may be picked up by email below
		}
		text := fmt.Sprintf(directNudgeTemplate, def.UserName, def.Logged.String(), def.Required, opts.State)
		if err := d.Chat.SendDirectMessage(ctx, text, *addr); err != nil {
			return report, fmt.Errorf("direct message to %s: %w", def.UserEmail, err)
		}
		notified[strings.ToLower(def.UserEmail)] = true
		report.NotifiedByChat = append(report.NotifiedByChat, def.UserName)
	}

	if len(resolved.toPersist) > 0 {
		if err := d.Addresses.PersistBatch(ctx, resolved.toPersist); err != nil {
			return report, fmt.Errorf("persist healed addresses: %w", err)
		}
	}

	if opts.NotifyByEmail {
		recipients := collectUnreachedEmails(deficiencies, notified)
		if len(recipients) > 0 {
			if err := d.Mail.SendBatch(ctx, reminderSubject, reminderBody, recipients); err != nil {
				return report, fmt.Errorf("batch reminder email: %w", err)
			}
			for _, email := range recipients {
				notified[strings.ToLower(email)] = true
			}
			report.NotifiedByEmail = recipients
		}
	}

	for _, def := range deficiencies {
		if !notified[strings.ToLower(def.UserEmail)] {
			report.Unreached = append(report.Unreached, def)
		}
	}

	if len(report.Unreached) == 0 {
		report.Summary = fmt.Sprintf(allNotifiedTemplate, len(deficiencies), opts.State)
	} else {
		reached := len(deficiencies) - len(report.Unreached)
		report.Summary = fmt.Sprintf(someNotifiedTemplate, reached, len(deficiencies), opts.State) +
			"\n" + formatShortfallList(report.Unreached)
	}
	return report, nil
}

// deliverSummary sends the composed summary to the chat target when present,
// otherwise by email to the recipient with the chat-notified list appended
// for audit. Neither destination available is a no-op.
func (d *Dispatcher) deliverSummary(ctx context.Context, report *Report, opts Options) error {
	switch {
	case opts.ChatTarget != nil:
		if err := d.Chat.SendToSpace(ctx, report.Summary, *opts.ChatTarget); err != nil {
			return fmt.Errorf("send summary to space %s: %w", opts.ChatTarget.Name, err)
		}
	case opts.RecipientEmail != "":
		body := report.Summary
		if len(report.NotifiedByChat) > 0 {
			body += "\n\nIndividually notified:\n- " + strings.Join(report.NotifiedByChat, "\n- ")
		}
		subject := fmt.Sprintf("Timesheet compliance report (%s)", opts.State)
		if err := d.Mail.SendBatch(ctx, subject, body, []string{opts.RecipientEmail}); err != nil {
			return fmt.Errorf("send summary to %s: %w", opts.RecipientEmail, err)
		}
	default:
		if d.Log != nil {
			d.Log.WithField("state", opts.State).Debug("no summary destination, skipping delivery")
		}
	}
	return nil
}

func noneNotifiedSummary(state compliance.ReportState, deficiencies []compliance.Deficiency) string {
	return fmt.Sprintf(noneNotifiedTemplate, state) + "\n" + formatShortfallList(deficiencies)
}

func filterDepartments(deficiencies []compliance.Deficiency, filter []string) []compliance.Deficiency {
	if len(filter) == 0 {
		return deficiencies
	}
	var out []compliance.Deficiency
	for _, def := range deficiencies {
		for _, dept := range filter {
			if strings.EqualFold(def.Department, dept) {
				out = append(out, def)
				break
			}
		}
	}
	return out
}

func collectUnreachedEmails(deficiencies []compliance.Deficiency, notified map[string]bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, def := range deficiencies {
		email := strings.ToLower(def.UserEmail)
		if email == "" || notified[email] || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, def.UserEmail)
	}
	return out
}
