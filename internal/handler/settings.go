package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/store"
)

// SettingsHandler reads and updates the family's match and split rules.
type SettingsHandler struct {
	settings *store.SettingsStore
	members  *store.MemberStore
	notifier events.Notifier
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, ms *store.MemberStore, notifier events.Notifier, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, members: ms, notifier: notifier, logger: logger}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r.Context(), h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fs, err := h.settings.Get(r.Context(), caller.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if fs == nil {
		d := allocation.DefaultSettings(caller.FamilyID)
		fs = &d
	}
	writeJSON(w, http.StatusOK, fs)
}

// Update replaces the settings. Fields left out of the body keep their
// current value.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := parentCaller(r, h.members)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cur, err := h.settings.Get(r.Context(), caller.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fs := allocation.DefaultSettings(caller.FamilyID)
	if cur != nil {
		fs = *cur
	}

	if err := decode(r, &fs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	fs.FamilyID = caller.FamilyID
	if err := allocation.ValidateSettings(fs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	saved, err := h.settings.Upsert(r.Context(), fs)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("settings updated", "family_id", caller.FamilyID, "match_enabled", saved.MatchEnabled,
		"cap", saved.MatchCapCentsPerKidPerDay)
	h.notifier.Notify(r.Context(), events.New(caller.FamilyID, events.EntitySettings, "updated", caller.FamilyID, nil))
	writeJSON(w, http.StatusOK, saved)
}
