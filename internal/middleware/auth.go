package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/choreledger/internal/auth"
)

// SessionCookieName carries the session token for browser clients.
const SessionCookieName = "choreledger_session"

// RequireAuth validates the bearer token or session cookie and populates
// AuthContext. The member is re-read on every request so a role change
// takes effect immediately.
func RequireAuth(jwt *auth.JWTManager, members auth.MemberGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := jwt.Validate(tokenFromRequest(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			member, err := members.GetByID(r.Context(), claims.MemberID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if member == nil {
				writeError(w, http.StatusUnauthorized, "unknown member")
				return
			}

			ac := auth.AuthContext{
				UserID:     member.ID,
				FamilyID:   member.FamilyID,
				Role:       member.Role,
				ParentType: member.ParentType,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireParent rejects requests from kids.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "only a parent can do this")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
