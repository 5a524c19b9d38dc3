package auth

import (
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

// RequireParent allows any parent.
func RequireParent(m *model.Member) error {
	if !m.IsParent() {
		return apperr.Unauthorized("only a parent can do this")
	}
	return nil
}

// RequireChild allows kids only.
func RequireChild(m *model.Member) error {
	if !m.IsChild() {
		return apperr.Unauthorized("only a kid can do this")
	}
	return nil
}

// RequirePrimaryApprover allows the parent who approves and rejects
// completions.
func RequirePrimaryApprover(m *model.Member) error {
	if !m.IsParent() || m.ParentType != model.ParentTypeMom {
		return apperr.Unauthorized("only mom can review completions")
	}
	return nil
}

// RequireOverrideApprover allows the parent who adjusts, revokes and
// backfills approved work.
func RequireOverrideApprover(m *model.Member) error {
	if !m.IsParent() || m.ParentType != model.ParentTypeDad {
		return apperr.Unauthorized("only dad can override completions")
	}
	return nil
}

// RequireFamily rejects access to another family's rows. The row is
// reported as missing so ids from other families are not disclosed.
func RequireFamily(m *model.Member, familyID int64, what string) error {
	if m.FamilyID != familyID {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}
