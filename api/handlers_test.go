package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/sched"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeTimesheets struct{}

func (fakeTimesheets) FetchByStatus(context.Context, compliance.TimePoint, compliance.TimePoint, string) ([]compliance.RawEntry, error) {
	return nil, nil
}

type fakeDirectory struct{ users []compliance.UserRecord }

func (f fakeDirectory) FetchActiveUsers(context.Context) ([]compliance.UserRecord, error) {
	return f.users, nil
}

type fakeTrigger struct{ fired chan struct{} }

func (f *fakeTrigger) RunNow() { f.fired <- struct{}{} }

type fakeRules struct{ set sched.RuleSet }

func (f fakeRules) Load() (sched.RuleSet, error) { return f.set, nil }

type fakeStats struct{ snapshots []sched.Snapshot }

func (f fakeStats) ListSnapshots(_ context.Context, limit int) ([]sched.Snapshot, error) {
	if limit > 0 && limit < len(f.snapshots) {
		return f.snapshots[:limit], nil
	}
	return f.snapshots, nil
}

func testHandler() (*Handler, *fakeTrigger) {
	maryRef := &compliance.UserRef{ID: "u-mary", Email: "mary@corp.test", Name: "Mary"}
	directory := fakeDirectory{users: []compliance.UserRecord{
		{ID: "u-alice", Email: "alice@corp.test", DisplayName: "Alice",
			WeeklyHourQuota: 40, Manager: maryRef,
			Department: compliance.DepartmentRef{Name: "Eng"}, Active: true},
	}}
	trigger := &fakeTrigger{fired: make(chan struct{}, 1)}
	return &Handler{
		Engine:  &compliance.Engine{Timesheets: fakeTimesheets{}, Directory: directory},
		Trigger: trigger,
		Rules:   fakeRules{},
		Stats:   fakeStats{snapshots: []sched.Snapshot{{ID: "snap-1", State: "unsubmitted"}}},
	}, trigger
}

func doRequest(t *testing.T, h *Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// =============================================================================
// TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(t, h, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTriggerPass(t *testing.T) {
	h, trigger := testHandler()
	rec := doRequest(t, h, http.MethodPost, "/api/pass/run")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-trigger.fired:
	case <-time.After(time.Second):
		t.Fatal("pass was never triggered")
	}
}

func TestComputeDeficiencies_DryRun(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(t, h, http.MethodGet,
		"/api/deficiencies?state=unsubmitted&requester=mary@corp.test&date=2025-06-06")
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []deficiencyDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "Alice", dtos[0].UserName)
	assert.Equal(t, "0", dtos[0].Logged)
	assert.Equal(t, 40, dtos[0].Required)
	assert.Equal(t, "Mary", dtos[0].ManagerName)
}

func TestComputeDeficiencies_BadInputs(t *testing.T) {
	h, _ := testHandler()

	rec := doRequest(t, h, http.MethodGet, "/api/deficiencies?state=sideways&requester=x@corp.test")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/deficiencies?state=unsubmitted")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet,
		"/api/deficiencies?state=unsubmitted&requester=x@corp.test&date=06-06-2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestComputeDeficiencies_AcceptsStateSynonyms(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(t, h, http.MethodGet,
		"/api/deficiencies?state=not+submitted&requester=mary@corp.test&date=2025-06-06")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListStatistics(t *testing.T) {
	h, _ := testHandler()
	rec := doRequest(t, h, http.MethodGet, "/api/statistics")
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshots []sched.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, "snap-1", snapshots[0].ID)
}
