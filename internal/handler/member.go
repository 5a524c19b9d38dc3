package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

type MemberHandler struct {
	db       *sql.DB
	notifier events.Notifier
	logger   *slog.Logger
}

func NewMemberHandler(db *sql.DB, notifier events.Notifier, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{db: db, notifier: notifier, logger: logger}
}

// parentCaller loads the caller and requires a parent.
func parentCaller(r *http.Request, members auth.MemberGetter) (*model.Member, error) {
	caller, err := auth.Caller(r.Context(), members)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}
	return caller, nil
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	ms := store.NewMemberStore(h.db)
	caller, err := auth.Caller(r.Context(), ms)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	members, err := ms.ListByFamily(r.Context(), caller.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type memberRequest struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	ParentType  string `json:"parent_type"`
	AvatarEmoji string `json:"avatar_emoji"`
	PIN         string `json:"pin"`
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	ms := store.NewMemberStore(h.db)
	caller, err := parentCaller(r, ms)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, r, h.logger, apperr.Validation("name is required"))
		return
	}
	if err := validateParentType(req.Role, req.ParentType); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = "😀"
	}

	exists, err := ms.NameExists(r.Context(), caller.FamilyID, req.Name, 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if exists {
		writeError(w, r, h.logger, apperr.Conflict("a family member with that name already exists"))
		return
	}

	var member *model.Member
	err = store.InTx(r.Context(), h.db, func(tx *sql.Tx) error {
		txs := store.NewMemberStore(tx)
		m, err := txs.Create(r.Context(), caller.FamilyID, req.Name, req.Role, req.ParentType, req.AvatarEmoji)
		if err != nil {
			return err
		}
		if err := txs.SetPIN(r.Context(), m.ID, hash); err != nil {
			return err
		}
		member, err = txs.GetByID(r.Context(), m.ID)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.notifier.Notify(r.Context(), events.New(member.FamilyID, events.EntityMember, "created", member.ID, nil))
	writeJSON(w, http.StatusCreated, member)
}

// Update renames a member or changes a parent's type. Role itself is fixed.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ms := store.NewMemberStore(h.db)
	caller, err := parentCaller(r, ms)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	existing, err := ms.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil || existing.FamilyID != caller.FamilyID {
		writeError(w, r, h.logger, apperr.NotFound("member not found"))
		return
	}

	var req memberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = existing.AvatarEmoji
	}
	if req.ParentType == "" && existing.IsParent() {
		req.ParentType = existing.ParentType
	}
	if err := validateParentType(existing.Role, req.ParentType); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	exists, err := ms.NameExists(r.Context(), caller.FamilyID, req.Name, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if exists {
		writeError(w, r, h.logger, apperr.Conflict("a family member with that name already exists"))
		return
	}

	member, err := ms.Update(r.Context(), id, req.Name, req.ParentType, req.AvatarEmoji)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notifier.Notify(r.Context(), events.New(member.FamilyID, events.EntityMember, "updated", member.ID, nil))
	writeJSON(w, http.StatusOK, member)
}

// SetPIN replaces a member's PIN. Parents may set anyone's; others only
// their own.
func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	ms := store.NewMemberStore(h.db)
	caller, err := auth.Caller(r.Context(), ms)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target, err := ms.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if target == nil || target.FamilyID != caller.FamilyID {
		writeError(w, r, h.logger, apperr.NotFound("member not found"))
		return
	}
	if !caller.IsParent() && caller.ID != target.ID {
		writeError(w, r, h.logger, apperr.Unauthorized("you can only change your own PIN"))
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := ms.SetPIN(r.Context(), id, hash); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
