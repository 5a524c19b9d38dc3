package chore

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/model"
)

// Assignment modes accepted by Assign.
const (
	ModeDaily  = "daily"
	ModeManual = "manual"
	ModeNone   = "none"
)

type ChoreInput struct {
	Title      string `json:"title"`
	PriceCents int64  `json:"price_cents"`
	Active     *bool  `json:"active,omitempty"`
}

func (in *ChoreInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return apperr.Validation("title is required")
	}
	if in.PriceCents < 0 || in.PriceCents > allocation.MaxAmountCents {
		return apperr.Validation("price must be between 0 and %d", allocation.MaxAmountCents)
	}
	return nil
}

func (s *Service) parent(ctx context.Context) (*model.Member, error) {
	caller, err := auth.Caller(ctx, bind(s.db).members)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}
	return caller, nil
}

// Chores lists the family's chores. Kids only see active ones.
func (s *Service) Chores(ctx context.Context) ([]model.Chore, error) {
	caller, err := auth.Caller(ctx, bind(s.db).members)
	if err != nil {
		return nil, err
	}
	list, err := bind(s.db).chores.ListByFamily(ctx, caller.FamilyID, caller.IsChild())
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Chore{}
	}
	return list, nil
}

func (s *Service) CreateChore(ctx context.Context, in ChoreInput) (*model.Chore, error) {
	caller, err := s.parent(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := bind(s.db)
	c, err := st.chores.Create(ctx, caller.FamilyID, in.Title, in.PriceCents)
	if err != nil {
		return nil, err
	}
	if in.Active != nil && !*in.Active {
		if c, err = st.chores.Update(ctx, c.ID, c.Title, c.PriceCents, false); err != nil {
			return nil, err
		}
	}
	s.notifier.Notify(ctx, events.New(c.FamilyID, events.EntityChore, "created", c.ID, nil))
	return c, nil
}

// UpdateChore changes a chore's title, price or active flag. Postings
// already made keep the price they were approved at.
func (s *Service) UpdateChore(ctx context.Context, id int64, in ChoreInput) (*model.Chore, error) {
	caller, err := s.parent(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	st := bind(s.db)
	cur, err := st.loadChore(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	active := cur.Active
	if in.Active != nil {
		active = *in.Active
	}
	c, err := st.chores.Update(ctx, id, in.Title, in.PriceCents, active)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, events.New(c.FamilyID, events.EntityChore, "updated", c.ID, nil))
	return c, nil
}

type AssignInput struct {
	KidID      int64      `json:"kid_id"`
	ChoreID    int64      `json:"chore_id"`
	Mode       string     `json:"mode"`
	ManualDate model.Date `json:"manual_date"`
}

// Assign sets how a chore appears on a kid's board. Repeating the same
// request leaves one assignment; mode "none" removes it and returns nil.
func (s *Service) Assign(ctx context.Context, in AssignInput) (*model.Assignment, error) {
	caller, err := s.parent(ctx)
	if err != nil {
		return nil, err
	}
	st := bind(s.db)
	if _, err := st.loadKid(ctx, caller, in.KidID); err != nil {
		return nil, err
	}
	if _, err := st.loadChore(ctx, caller, in.ChoreID); err != nil {
		return nil, err
	}

	var a *model.Assignment
	switch in.Mode {
	case ModeDaily:
		a, err = st.chores.Assign(ctx, caller.FamilyID, in.KidID, in.ChoreID, true, model.Date{})
	case ModeManual:
		if in.ManualDate.IsZero() {
			return nil, apperr.Validation("manual_date is required for manual assignments")
		}
		a, err = st.chores.Assign(ctx, caller.FamilyID, in.KidID, in.ChoreID, false, in.ManualDate)
	case ModeNone:
		err = st.chores.Unassign(ctx, in.KidID, in.ChoreID)
	default:
		return nil, apperr.Validation("mode must be one of daily, manual, none")
	}
	if err != nil {
		return nil, fmt.Errorf("assign chore: %w", err)
	}

	s.notifier.Notify(ctx, events.New(caller.FamilyID, events.EntityAssignment, in.Mode, in.ChoreID, map[string]any{"kid_id": in.KidID}))
	return a, nil
}

// Assignments lists the family's assignments. Kids see only their own.
func (s *Service) Assignments(ctx context.Context) ([]model.Assignment, error) {
	st := bind(s.db)
	caller, err := auth.Caller(ctx, st.members)
	if err != nil {
		return nil, err
	}
	var list []model.Assignment
	if caller.IsChild() {
		list, err = st.chores.ListAssignmentsByKid(ctx, caller.ID)
	} else {
		list, err = st.chores.ListAssignments(ctx, caller.FamilyID)
	}
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Assignment{}
	}
	return list, nil
}
