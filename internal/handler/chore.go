package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/chore"
	"github.com/dukerupert/choreledger/internal/model"
)

// ChoreHandler serves the chore catalog, assignments, kid boards and the
// approvals queue.
type ChoreHandler struct {
	chores *chore.Service
	logger *slog.Logger
}

func NewChoreHandler(cs *chore.Service, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{chores: cs, logger: logger}
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.chores.Chores(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req chore.ChoreInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.chores.CreateChore(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req chore.ChoreInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.chores.UpdateChore(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.chores.Assignments(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Assign upserts an assignment; mode "none" removes it and answers 204.
func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req chore.AssignInput
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	a, err := h.chores.Assign(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if a == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Board serves GET /api/board?kid_id=&date=.
func (h *ChoreHandler) Board(w http.ResponseWriter, r *http.Request) {
	kidID, err := queryInt64(r, "kid_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	b, err := h.chores.Board(r.Context(), kidID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *ChoreHandler) Approvals(w http.ResponseWriter, r *http.Request) {
	q, err := h.chores.PendingQueue(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
