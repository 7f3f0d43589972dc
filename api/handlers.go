/*
handlers.go - HTTP handlers for the operational surface

PURPOSE:
  Thin JSON adapters over the engine. No business logic lives here: the
  dry-run endpoint calls the same ComputeDeficiencies the orchestrator
  uses, and the trigger endpoint just fires the runner.

ENDPOINTS:
  GET  /api/health             Liveness
  POST /api/pass/run           Fire a pass immediately (async, 202)
  GET  /api/rules              The rule set as currently loadable
  GET  /api/deficiencies       Dry-run: ?state=&requester=&date=YYYY-MM-DD
  GET  /api/statistics         Recent snapshots: ?limit=
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/compliance-engine/compliance"
	"github.com/warp/compliance-engine/sched"
)

// PassTrigger fires a compliance pass (implemented by sched.Runner).
type PassTrigger interface {
	RunNow()
}

// SnapshotLister reads back statistics snapshots (implemented by the
// SQLite store).
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]sched.Snapshot, error)
}

// Handler serves the operational API.
type Handler struct {
	Engine  *compliance.Engine
	Trigger PassTrigger
	Rules   sched.RuleSource
	Stats   SnapshotLister
	Log     *logrus.Logger
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerPass fires a pass in the background and returns immediately.
func (h *Handler) TriggerPass(w http.ResponseWriter, r *http.Request) {
	go h.Trigger.RunNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pass started"})
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := h.Rules.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ruleSet)
}

type deficiencyDTO struct {
	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail"`
	Department  string `json:"department"`
	ManagerName string `json:"managerName"`
	Logged      string `json:"loggedHours"`
	Required    int    `json:"requiredHours"`
}

// ComputeDeficiencies runs the engine once without notifying anyone.
func (h *Handler) ComputeDeficiencies(w http.ResponseWriter, r *http.Request) {
	state, err := compliance.ParseReportState(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	requester := r.URL.Query().Get("requester")
	if requester == "" {
		writeError(w, http.StatusBadRequest, errors.New("requester query parameter is required"))
		return
	}

	reportDate := compliance.Today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		reportDate = compliance.DateOf(parsed)
	}

	deficiencies, err := h.Engine.ComputeDeficiencies(r.Context(), state, reportDate, requester, false, nil, false)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	dtos := make([]deficiencyDTO, 0, len(deficiencies))
	for _, d := range deficiencies {
		dtos = append(dtos, deficiencyDTO{
			UserName:    d.UserName,
			UserEmail:   d.UserEmail,
			Department:  d.Department,
			ManagerName: d.ManagerName,
			Logged:      d.Logged.String(),
			Required:    d.Required,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListStatistics(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	snapshots, err := h.Stats.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
