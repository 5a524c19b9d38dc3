package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:     1,
		FamilyID:   2,
		Role:       model.RoleParent,
		ParentType: model.ParentTypeMom,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("AuthContext = %+v, want %+v", got, ac)
	}
	if FamilyID(ctx) != 2 {
		t.Errorf("FamilyID = %d, want 2", FamilyID(ctx))
	}
	if UserID(ctx) != 1 {
		t.Errorf("UserID = %d, want 1", UserID(ctx))
	}
	if !IsParent(ctx) {
		t.Error("expected IsParent to be true")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
	if FamilyID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
	if IsParent(context.Background()) {
		t.Error("expected false for missing context")
	}
}

type memberMap map[int64]*model.Member

func (m memberMap) GetByID(_ context.Context, id int64) (*model.Member, error) {
	return m[id], nil
}

func TestCaller(t *testing.T) {
	members := memberMap{7: {ID: 7, FamilyID: 1, Role: model.RoleChild}}

	_, err := Caller(context.Background(), members)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("no identity: err = %v, want unauthorized", err)
	}

	_, err = Caller(WithAuth(context.Background(), AuthContext{UserID: 8}), members)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("unknown member: err = %v, want unauthorized", err)
	}

	m, err := Caller(WithAuth(context.Background(), AuthContext{UserID: 7}), members)
	if err != nil {
		t.Fatalf("caller: %v", err)
	}
	if m.ID != 7 {
		t.Errorf("ID = %d, want 7", m.ID)
	}
}

func TestCapabilities(t *testing.T) {
	mom := &model.Member{Role: model.RoleParent, ParentType: model.ParentTypeMom, FamilyID: 1}
	dad := &model.Member{Role: model.RoleParent, ParentType: model.ParentTypeDad, FamilyID: 1}
	kid := &model.Member{Role: model.RoleChild, FamilyID: 1}

	tests := []struct {
		name  string
		check func(*model.Member) error
		m     *model.Member
		ok    bool
	}{
		{"mom reviews", RequirePrimaryApprover, mom, true},
		{"dad cannot review", RequirePrimaryApprover, dad, false},
		{"kid cannot review", RequirePrimaryApprover, kid, false},
		{"dad overrides", RequireOverrideApprover, dad, true},
		{"mom cannot override", RequireOverrideApprover, mom, false},
		{"parent", RequireParent, dad, true},
		{"kid is not parent", RequireParent, kid, false},
		{"kid", RequireChild, kid, true},
		{"mom is not kid", RequireChild, mom, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(tt.m)
			if tt.ok && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, apperr.ErrUnauthorized) {
				t.Errorf("err = %v, want unauthorized", err)
			}
		})
	}

	if err := RequireFamily(kid, 2, "chore"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("other family: err = %v, want not found", err)
	}
}
