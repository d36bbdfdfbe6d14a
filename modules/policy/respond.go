package policy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/quotakit/pkg/enforce"
	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/trial"
)

type errorResponse struct {
	Error string `json:"error"`
}

// ineligibleResponse is the 422 body for a refused trial grant. History is
// included so the admin console can render the refusal with full context.
type ineligibleResponse struct {
	Error      string              `json:"error"`
	ReasonCode trial.ReasonCode    `json:"reason_code"`
	Details    trial.Details       `json:"details"`
	CanForce   bool                `json:"can_force"`
	History    []trial.LedgerEntry `json:"history"`
}

type deniedResponse struct {
	Error string          `json:"error"`
	Usage quota.UsageView `json:"usage"`
}

func (m *Module) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.Error("failed to encode response", logger.Err(err))
	}
}

// respondError maps the engine's error taxonomy to HTTP statuses.
// Expected outcomes (ineligible, quota exhausted) carry structured bodies;
// everything unrecognized is a 500 and gets logged.
func (m *Module) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ie, ok := trial.AsIneligible(err); ok {
		m.respondJSON(w, http.StatusUnprocessableEntity, ineligibleResponse{
			Error:      "trial ineligible",
			ReasonCode: ie.Reason,
			Details:    ie.Details,
			CanForce:   ie.CanForce,
			History:    ie.History,
		})
		return
	}

	if de, ok := enforce.AsDenied(err); ok {
		m.respondJSON(w, http.StatusTooManyRequests, deniedResponse{
			Error: "quota exhausted",
			Usage: de.Usage,
		})
		return
	}

	switch {
	case errors.Is(err, trial.ErrProgramNotFound),
		errors.Is(err, trial.ErrEntryNotFound):
		m.respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, trial.ErrInvalidState),
		errors.Is(err, trial.ErrActiveTrialExists):
		m.respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, trial.ErrInvalidDuration),
		errors.Is(err, trial.ErrJustificationTooShort),
		errors.Is(err, trial.ErrActorRequired),
		errors.Is(err, trial.ErrOverriddenReasonNeeded),
		errors.Is(err, trial.ErrProgramInactive),
		errors.Is(err, quota.ErrUnknownTier),
		errors.Is(err, quota.ErrUnknownRole),
		errors.Is(err, enforce.ErrInvalidCost):
		m.respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	default:
		m.log.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Err(err))
		m.respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
