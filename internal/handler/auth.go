package handler

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/middleware"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// AuthHandler registers families and signs members in with their PIN.
type AuthHandler struct {
	db     *sql.DB
	jwt    *auth.JWTManager
	logger *slog.Logger
}

func NewAuthHandler(db *sql.DB, jwt *auth.JWTManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, logger: logger}
}

type sessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Member    *model.Member `json:"member"`
	Family    *model.Family `json:"family,omitempty"`
}

// Register creates a family with default settings and its first parent.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FamilyName string `json:"family_name"`
		ParentName string `json:"parent_name"`
		ParentType string `json:"parent_type"`
		PIN        string `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.ParentName = strings.TrimSpace(req.ParentName)
	if req.FamilyName == "" || req.ParentName == "" {
		writeError(w, r, h.logger, apperr.Validation("family_name and parent_name are required"))
		return
	}
	if err := validateParentType(model.RoleParent, req.ParentType); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var family *model.Family
	var parent *model.Member
	err = store.InTx(r.Context(), h.db, func(tx *sql.Tx) error {
		var err error
		if family, err = store.NewFamilyStore(tx).Create(r.Context(), req.FamilyName); err != nil {
			return err
		}
		if _, err = store.NewSettingsStore(tx).Upsert(r.Context(), allocation.DefaultSettings(family.ID)); err != nil {
			return err
		}
		ms := store.NewMemberStore(tx)
		if parent, err = ms.Create(r.Context(), family.ID, req.ParentName, model.RoleParent, req.ParentType, ""); err != nil {
			return err
		}
		if err = ms.SetPIN(r.Context(), parent.ID, hash); err != nil {
			return err
		}
		parent, err = ms.GetByID(r.Context(), parent.ID)
		return err
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info("family registered", "family_id", family.ID, "member_id", parent.ID)
	h.startSession(w, r, http.StatusCreated, parent, family)
}

// Login exchanges a member id and PIN for a session token. Failures do not
// say which of the two was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID int64  `json:"member_id"`
		PIN      string `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ms := store.NewMemberStore(h.db)
	member, err := ms.GetByID(r.Context(), req.MemberID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	hash := ""
	if member != nil {
		if hash, err = ms.GetPINHash(r.Context(), member.ID); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	if err := auth.CheckPIN(hash, req.PIN); err != nil {
		h.logger.Warn("login failed", "member_id", req.MemberID, "remote", middleware.RealIP(r))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid member or PIN"})
		return
	}

	family, err := store.NewFamilyStore(h.db).GetByID(r.Context(), member.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.startSession(w, r, http.StatusOK, member, family)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, m *model.Member, f *model.Family) {
	token, expires, err := h.jwt.Generate(m)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, status, sessionResponse{Token: token, ExpiresAt: expires, Member: m, Family: f})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in member and their family.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.Caller(r.Context(), store.NewMemberStore(h.db))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	family, err := store.NewFamilyStore(h.db).GetByID(r.Context(), caller.FamilyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": caller, "family": family})
}

func validateParentType(role, parentType string) error {
	switch role {
	case model.RoleParent:
		if parentType != model.ParentTypeMom && parentType != model.ParentTypeDad {
			return apperr.Validation("parent_type must be mom or dad")
		}
	case model.RoleChild:
		if parentType != "" {
			return apperr.Validation("parent_type only applies to parents")
		}
	default:
		return apperr.Validation("role must be parent or child")
	}
	return nil
}
