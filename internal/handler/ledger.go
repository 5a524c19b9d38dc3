package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/ledger"
)

// LedgerHandler serves activity, totals, reports and goals.
type LedgerHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewLedgerHandler(ls *ledger.Service, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ls, logger: logger}
}

// Recent serves GET /api/ledger?kid_id=&limit=.
func (h *LedgerHandler) Recent(w http.ResponseWriter, r *http.Request) {
	kidID, err := queryInt64(r, "kid_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	rows, err := h.ledger.RecentActivity(r.Context(), kidID, int(limit))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if rows == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Totals serves GET /api/totals?kid_id=&from=&to=.
func (h *LedgerHandler) Totals(w http.ResponseWriter, r *http.Request) {
	kidID, err := queryInt64(r, "kid_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	totals, err := h.ledger.Aggregate(r.Context(), kidID, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// Report serves GET /api/reports?from=&to=.
func (h *LedgerHandler) Report(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	report, err := h.ledger.Report(r.Context(), from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Goals serves GET /api/goals?kid_id=.
func (h *LedgerHandler) Goals(w http.ResponseWriter, r *http.Request) {
	kidID, err := queryInt64(r, "kid_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	goals, err := h.ledger.Goals(r.Context(), kidID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *LedgerHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KidID       int64  `json:"kid_id"`
		Title       string `json:"title"`
		TargetCents int64  `json:"target_cents"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.KidID <= 0 {
		writeError(w, r, h.logger, apperr.Validation("kid_id is required"))
		return
	}
	g, err := h.ledger.CreateGoal(r.Context(), req.KidID, req.Title, req.TargetCents)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// SetGoalActive serves PUT /api/goals/{id}/active with {"active": bool}.
func (h *LedgerHandler) SetGoalActive(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Active == nil {
		writeError(w, r, h.logger, apperr.Validation("active is required"))
		return
	}
	g, err := h.ledger.SetGoalActive(r.Context(), id, *req.Active)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
