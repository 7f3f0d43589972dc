package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/notify"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeTimesheets struct{}

func (fakeTimesheets) FetchByStatus(context.Context, compliance.TimePoint, compliance.TimePoint, string) ([]compliance.RawEntry, error) {
	return nil, nil // nobody logged anything, everyone visible is deficient
}

type fakeDirectory struct {
	users []compliance.UserRecord
	calls int
	err   error
}

func (f *fakeDirectory) FetchActiveUsers(context.Context) ([]compliance.UserRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

type fakeAddressBook struct{}

func (fakeAddressBook) FetchAll(context.Context) ([]notify.ChatAddress, error)       { return nil, nil }
func (fakeAddressBook) PersistBatch(context.Context, []notify.ChatAddress) error     { return nil }

type sentMessage struct {
	text    string
	spaceID string
}

type fakeChat struct {
	spaceSends   []sentMessage
	resolveCalls int
	resolveErr   map[string]error
	missing      map[string]bool
}

func (f *fakeChat) ReverseLookupBySpaceNames(context.Context, []string) ([]notify.ChatAddress, error) {
	return nil, nil
}

func (f *fakeChat) SendDirectMessage(context.Context, string, notify.ChatAddress) error {
	return nil
}

func (f *fakeChat) SendToSpace(_ context.Context, text string, target notify.ChatTarget) error {
	f.spaceSends = append(f.spaceSends, sentMessage{text: text, spaceID: target.SpaceID})
	return nil
}

func (f *fakeChat) ResolveSpaceByName(_ context.Context, name string) (*notify.ChatTarget, error) {
	f.resolveCalls++
	if err := f.resolveErr[name]; err != nil {
		return nil, err
	}
	if f.missing[name] {
		return nil, nil
	}
	return &notify.ChatTarget{SpaceID: name, Name: name}, nil
}

type fakeMailer struct {
	batches [][]string
}

func (f *fakeMailer) SendBatch(_ context.Context, _, _ string, recipients []string) error {
	f.batches = append(f.batches, recipients)
	return nil
}

type fakeStats struct {
	snapshots []Snapshot
	err       error
}

func (f *fakeStats) AppendSnapshot(_ context.Context, snapshot Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

type staticRules struct {
	set RuleSet
	err error
}

func (s staticRules) Load() (RuleSet, error) { return s.set, s.err }

// =============================================================================
// FIXTURE
// =============================================================================

// Tuesday Jun 3 2025, 10:00. Matches "10:00 Tue" rules.
var passTime = time.Date(2025, time.June, 3, 10, 0, 0, 0, time.UTC)

func testDirectory() *fakeDirectory {
	maryRef := &compliance.UserRef{ID: "u-mary", Email: "mary@corp.test", Name: "Mary"}
	return &fakeDirectory{users: []compliance.UserRecord{
		{
			ID: "u-alice", Email: "alice@corp.test", DisplayName: "Alice",
			WeeklyHourQuota: 40, Manager: maryRef,
			Department: compliance.DepartmentRef{Name: "Eng"}, Active: true,
		},
		{
			ID: "u-mary", Email: "mary@corp.test", DisplayName: "Mary",
			WeeklyHourQuota: 40,
			Department: compliance.DepartmentRef{Name: "Eng"}, Active: true,
		},
	}}
}

type harness struct {
	orch      *Orchestrator
	directory *fakeDirectory
	chat      *fakeChat
	mail      *fakeMailer
	stats     *fakeStats
}

func newHarness(set RuleSet) *harness {
	directory := testDirectory()
	chat := &fakeChat{resolveErr: map[string]error{}, missing: map[string]bool{}}
	mail := &fakeMailer{}
	stats := &fakeStats{}
	engine := &compliance.Engine{Timesheets: fakeTimesheets{}, Directory: directory}
	return &harness{
		orch: &Orchestrator{
			Engine:     engine,
			Dispatcher: notify.NewDispatcher(fakeAddressBook{}, chat, mail, nil),
			Chat:       chat,
			Stats:      stats,
			Rules:      staticRules{set: set},
		},
		directory: directory,
		chat:      chat,
		mail:      mail,
		stats:     stats,
	}
}

// =============================================================================
// SCHEDULE GATING AND CACHING
// =============================================================================

func TestRunScheduledPass_SkipsRulesNotDue(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "17:00 Fri", Recipient: "mary@corp.test", State: "unsubmitted"},
	}})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)

	assert.Equal(t, 0, h.directory.calls, "rule not due, nothing computed")
	assert.Empty(t, h.mail.batches)
}

func TestRunScheduledPass_ReusesDeficienciesAcrossRules(t *testing.T) {
	// Same state and recipient, different delivery channels. The deficiency
	// list is computed once and shared through the pass cache.
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted", Spaces: []string{"eng"}},
		{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
	}})

	cache := make(RunCache)
	err := h.orch.RunScheduledPass(context.Background(), passTime, cache)
	require.NoError(t, err)

	assert.Equal(t, 1, h.directory.calls, "second rule must hit the cache")
	require.Contains(t, cache, "unsubmitted_mary@corp.test")
	require.Len(t, cache["unsubmitted_mary@corp.test"], 1)
	assert.Equal(t, "Alice", cache["unsubmitted_mary@corp.test"][0].UserName)
}

func TestRunScheduledPass_DistinctRecipientsComputeSeparately(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
		{Schedule: "10:00 Tue", Recipient: "other@corp.test", State: "unsubmitted"},
	}})

	cache := make(RunCache)
	err := h.orch.RunScheduledPass(context.Background(), passTime, cache)
	require.NoError(t, err)

	assert.Equal(t, 2, h.directory.calls)
	assert.Contains(t, cache, "unsubmitted_mary@corp.test")
	assert.Contains(t, cache, "unsubmitted_other@corp.test")
}

// =============================================================================
// SPACE DELIVERY
// =============================================================================

func TestRunScheduledPass_DeliversToEverySpace(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", State: "unsubmitted", Spaces: []string{"eng", "spaces/leads"}},
	}})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)

	require.Len(t, h.chat.spaceSends, 2)
	assert.Equal(t, "spaces/eng", h.chat.spaceSends[0].spaceID)
	assert.Equal(t, "spaces/leads", h.chat.spaceSends[1].spaceID)
}

func TestRunScheduledPass_SpaceResolutionCachedWithinPass(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", State: "unsubmitted", Recipient: "mary@corp.test", Spaces: []string{"eng"}},
		{Schedule: "10:00 Tue", State: "unapproved", Recipient: "mary@corp.test", Spaces: []string{"eng"}},
	}})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)
	assert.Equal(t, 1, h.chat.resolveCalls, "one resolution per space per pass")
}

func TestRunScheduledPass_MissingSpaceSkippedWithoutError(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", State: "unsubmitted", Spaces: []string{"ghost", "eng"}},
	}})
	h.chat.missing["spaces/ghost"] = true

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)

	require.Len(t, h.chat.spaceSends, 1)
	assert.Equal(t, "spaces/eng", h.chat.spaceSends[0].spaceID)
}

// =============================================================================
// FAILURE ISOLATION
// =============================================================================

func TestRunScheduledPass_ConfigErrorsOnlyCostTheOneRule(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", State: "unsubmitted"},                  // no destination
		{Schedule: "10:00 Tue", State: "sideways", Spaces: []string{"eng"}}, // unknown state
		{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
	}})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err, "config problems are skipped, not surfaced")
	require.Len(t, h.mail.batches, 1, "valid rule still ran")
	assert.Equal(t, []string{"mary@corp.test"}, h.mail.batches[0])
}

func TestRunScheduledPass_FailingRuleDoesNotStopThePass(t *testing.T) {
	h := newHarness(RuleSet{Rules: []Rule{
		{Schedule: "10:00 Tue", State: "unsubmitted", Spaces: []string{"broken"}},
		{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
	}})
	h.chat.resolveErr["spaces/broken"] = errors.New("chat api 500")

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat api 500")
	require.Len(t, h.mail.batches, 1, "later rule ran despite the failure")
}

func TestRunScheduledPass_RuleLoadFailureAbortsPass(t *testing.T) {
	h := newHarness(RuleSet{})
	h.orch.Rules = staticRules{err: errors.New("rules file unreadable")}

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rules")
}

// =============================================================================
// STATISTICS
// =============================================================================

func TestRunScheduledPass_StatisticsSnapshot(t *testing.T) {
	h := newHarness(RuleSet{
		Statistics: &StatisticsRule{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
	})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)

	require.Len(t, h.stats.snapshots, 1)
	snap := h.stats.snapshots[0]
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, passTime, snap.TakenAt)
	assert.Equal(t, "unsubmitted", snap.State)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Alice", snap.Entries[0].UserName)
	assert.Equal(t, "Mary", snap.Entries[0].ManagerName)
	assert.Equal(t, "Eng", snap.Entries[0].DepartmentName)
}

func TestRunScheduledPass_StatisticsReusesRunCache(t *testing.T) {
	h := newHarness(RuleSet{
		Rules: []Rule{
			{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
		},
		Statistics: &StatisticsRule{Schedule: "10:00 Tue", Recipient: "mary@corp.test", State: "unsubmitted"},
	})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)

	assert.Equal(t, 1, h.directory.calls, "snapshot reused the rule's computation")
	require.Len(t, h.stats.snapshots, 1)
}

func TestRunScheduledPass_StatisticsNotDue(t *testing.T) {
	h := newHarness(RuleSet{
		Statistics: &StatisticsRule{Schedule: "17:00 Fri", State: "unsubmitted"},
	})

	err := h.orch.RunScheduledPass(context.Background(), passTime, make(RunCache))
	require.NoError(t, err)
	assert.Empty(t, h.stats.snapshots)
}

// =============================================================================
// SPACE NAME NORMALIZATION
// =============================================================================

func TestNormalizeSpaceName(t *testing.T) {
	assert.Equal(t, "spaces/abc", NormalizeSpaceName("abc"))
	assert.Equal(t, "spaces/abc", NormalizeSpaceName("spaces/abc"))
}
