package policy

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/trial"
)

type admitRequest struct {
	// Cost is the number of billable units to consume; defaults to 1.
	Cost int `json:"cost"`
}

type grantRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	Tier          string     `json:"tier"`
	DurationDays  int        `json:"duration_days"`
	ProgramID     *uuid.UUID `json:"program_id,omitempty"`
	Justification string     `json:"justification"`
}

type forceGrantRequest struct {
	grantRequest
	OverriddenReason trial.ReasonCode `json:"overridden_reason"`
}

type convertRequest struct {
	ToTier string `json:"to_tier"`
}

type sweepResponse struct {
	trial.SweepResult
	Errors []string `json:"errors,omitempty"`
}

func (m *Module) handleUsage(w http.ResponseWriter, r *http.Request) {
	subject, err := m.resolve(r)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	usage, err := m.gate.Usage(r.Context(), subject)
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	m.respondJSON(w, http.StatusOK, usage)
}

func (m *Module) handleAdmit(w http.ResponseWriter, r *http.Request) {
	subject, err := m.resolve(r)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	req := admitRequest{Cost: 1}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
			return
		}
		if req.Cost == 0 {
			req.Cost = 1
		}
	}

	decision, err := m.gate.Admit(r.Context(), subject, req.Cost)
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	if !decision.Admitted {
		m.respondJSON(w, http.StatusTooManyRequests, deniedResponse{
			Error: "quota exhausted",
			Usage: decision.Usage,
		})
		return
	}
	m.respondJSON(w, http.StatusOK, decision)
}

func (m *Module) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	in, err := req.toInput(r)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	entry, err := m.trials.Grant(r.Context(), in)
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	m.respondJSON(w, http.StatusCreated, entry)
}

func (m *Module) handleForceGrant(w http.ResponseWriter, r *http.Request) {
	var req forceGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	in, err := req.toInput(r)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	entry, err := m.trials.ForceGrant(r.Context(), trial.ForceGrantInput{
		GrantInput:       in,
		OverriddenReason: req.OverriddenReason,
	})
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	m.respondJSON(w, http.StatusCreated, entry)
}

func (m *Module) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	history, err := m.trials.History(r.Context(), userID)
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	if history == nil {
		history = []trial.LedgerEntry{}
	}
	m.respondJSON(w, http.StatusOK, history)
}

func (m *Module) handleEligibility(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	var programID *uuid.UUID
	if raw := r.URL.Query().Get("program_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid program id"})
			return
		}
		programID = &id
	}

	elig, err := m.trials.Eligibility(r.Context(), userID, programID)
	if err != nil {
		m.respondError(w, r, err)
		return
	}
	m.respondJSON(w, http.StatusOK, elig)
}

func (m *Module) handleConvert(w http.ResponseWriter, r *http.Request) {
	entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entry id"})
		return
	}

	var req convertRequest
	if err := decodeJSON(r, &req); err != nil {
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}
	to, err := quota.ParseTier(req.ToTier)
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	if err := m.trials.Convert(r.Context(), entryID, to, time.Now().UTC()); err != nil {
		m.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := m.trials.SweepExpired(r.Context(), time.Now().UTC())
	if err != nil {
		m.respondError(w, r, err)
		return
	}

	resp := sweepResponse{SweepResult: result}
	for _, e := range result.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	m.respondJSON(w, http.StatusOK, resp)
}

func (m *Module) handleHealth(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, probe := range m.health {
		if err := probe(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		m.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"failed": failed,
		})
		return
	}
	m.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toInput converts the wire request to the service input, pulling the
// actor identity from the gateway header.
func (req grantRequest) toInput(r *http.Request) (trial.GrantInput, error) {
	var tier quota.Tier
	if req.Tier != "" {
		var err error
		if tier, err = quota.ParseTier(req.Tier); err != nil {
			return trial.GrantInput{}, err
		}
	}
	return trial.GrantInput{
		UserID:        req.UserID,
		Tier:          tier,
		DurationDays:  req.DurationDays,
		ProgramID:     req.ProgramID,
		Actor:         r.Header.Get("X-Actor"),
		Justification: req.Justification,
	}, nil
}
