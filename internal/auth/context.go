package auth

import (
	"context"
	"fmt"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

type contextKey struct{}

// AuthContext is the caller as resolved for the current request. Only
// UserID comes from the session token; the rest is read from the database
// by the middleware on every request.
type AuthContext struct {
	UserID     int64
	FamilyID   int64
	Role       string
	ParentType string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func FamilyID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.FamilyID
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsParent(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleParent
}

// MemberGetter loads a member by id. *store.MemberStore satisfies it.
type MemberGetter interface {
	GetByID(ctx context.Context, id int64) (*model.Member, error)
}

// Caller re-reads the calling member from the database. Mutating
// operations call it instead of trusting the role in the context, since a
// role can change between requests.
func Caller(ctx context.Context, members MemberGetter) (*model.Member, error) {
	id := UserID(ctx)
	if id == 0 {
		return nil, apperr.Unauthorized("not signed in")
	}
	m, err := members.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if m == nil {
		return nil, apperr.Unauthorized("unknown member")
	}
	return m, nil
}
