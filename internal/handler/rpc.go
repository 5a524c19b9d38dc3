package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/chore"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/topup"
)

// RPCHandler serves the named procedures under POST /rpc/{name}. Each takes
// a JSON object of parameters and returns the affected rows.
type RPCHandler struct {
	chores *chore.Service
	ledger *ledger.Service
	topups *topup.Generator
	logger *slog.Logger
}

func NewRPCHandler(cs *chore.Service, ls *ledger.Service, tg *topup.Generator, logger *slog.Logger) *RPCHandler {
	return &RPCHandler{chores: cs, ledger: ls, topups: tg, logger: logger}
}

// Routes maps procedure names to handlers.
func (h *RPCHandler) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"record_chore_completion":       h.RecordCompletion,
		"kid_revert_pending_completion": h.RevertPending,
		"mom_approve_completion":        h.Approve,
		"mom_reject_completion":         h.Reject,
		"dad_adjust_completion":         h.Adjust,
		"dad_revoke_completion":         h.Revoke,
		"dad_backfill_commit":           h.Backfill,
		"generate_daily_topups":         h.GenerateTopups,
		"update_allocation":             h.UpdateAllocation,
	}
}

type completionParams struct {
	CompletionID int64 `json:"completion_id"`
}

func (p completionParams) validate() error {
	if p.CompletionID <= 0 {
		return apperr.Validation("completion_id is required")
	}
	return nil
}

// readParams decodes the body into p and runs check. It writes the error
// response and returns false on failure.
func (h *RPCHandler) readParams(w http.ResponseWriter, r *http.Request, p any, check func() error) bool {
	err := decode(r, p)
	if err == nil && check != nil {
		err = check()
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return false
	}
	return true
}

func (h *RPCHandler) RecordCompletion(w http.ResponseWriter, r *http.Request) {
	var p struct {
		ChoreID       int64      `json:"chore_id"`
		CompletedDate model.Date `json:"completed_date"`
	}
	if !h.readParams(w, r, &p, func() error {
		if p.ChoreID <= 0 {
			return apperr.Validation("chore_id is required")
		}
		return nil
	}) {
		return
	}

	c, err := h.chores.RecordCompletion(r.Context(), p.ChoreID, p.CompletedDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *RPCHandler) RevertPending(w http.ResponseWriter, r *http.Request) {
	var p completionParams
	if !h.readParams(w, r, &p, func() error { return p.validate() }) {
		return
	}
	if err := h.chores.RevertPendingCompletion(r.Context(), p.CompletionID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"completion_id": p.CompletionID, "reverted": true})
}

func (h *RPCHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var p completionParams
	if !h.readParams(w, r, &p, func() error { return p.validate() }) {
		return
	}
	res, err := h.chores.Approve(r.Context(), p.CompletionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RPCHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var p struct {
		completionParams
		Notes string `json:"notes"`
	}
	if !h.readParams(w, r, &p, func() error { return p.validate() }) {
		return
	}
	c, err := h.chores.Reject(r.Context(), p.CompletionID, p.Notes)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *RPCHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var p struct {
		completionParams
		NewAmountCents *int64 `json:"new_amount_cents"`
		SpendPct       int    `json:"spend_pct"`
		CharityPct     int    `json:"charity_pct"`
		SavingsPct     int    `json:"savings_pct"`
	}
	if !h.readParams(w, r, &p, func() error {
		if p.NewAmountCents == nil {
			return apperr.Validation("new_amount_cents is required")
		}
		return p.validate()
	}) {
		return
	}

	pct := allocation.Percentages{Spend: p.SpendPct, Charity: p.CharityPct, Savings: p.SavingsPct}
	res, err := h.chores.Adjust(r.Context(), p.CompletionID, *p.NewAmountCents, pct)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RPCHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var p completionParams
	if !h.readParams(w, r, &p, func() error { return p.validate() }) {
		return
	}
	res, err := h.chores.Revoke(r.Context(), p.CompletionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RPCHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var p chore.BackfillRequest
	if !h.readParams(w, r, &p, nil) {
		return
	}
	res, err := h.chores.Backfill(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *RPCHandler) GenerateTopups(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Date model.Date `json:"date"`
	}
	if !h.readParams(w, r, &p, nil) {
		return
	}
	res, err := h.topups.GenerateDailyTopups(r.Context(), p.Date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *RPCHandler) UpdateAllocation(w http.ResponseWriter, r *http.Request) {
	var p struct {
		TxnID int64 `json:"txn_id"`
		ledger.Reallocation
	}
	if !h.readParams(w, r, &p, func() error {
		if p.TxnID <= 0 {
			return apperr.Validation("txn_id is required")
		}
		return nil
	}) {
		return
	}
	txn, err := h.ledger.OverrideAllocation(r.Context(), p.TxnID, p.Reallocation)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}
