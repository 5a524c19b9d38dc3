package chore

import (
	"context"
	"fmt"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

type BoardItem struct {
	Chore        model.Chore `json:"chore"`
	Status       Status      `json:"status"`
	CompletionID *int64      `json:"completion_id,omitempty"`
}

type Board struct {
	KidID        int64       `json:"kid_id"`
	Date         model.Date  `json:"date"`
	Items        []BoardItem `json:"items"`
	EarnedToday  int64       `json:"earned_today"`
	PendingToday int64       `json:"pending_today"`
}

// Board lists the active chores assigned to a kid for date (today when
// zero) with their state. Kids always get their own board.
func (s *Service) Board(ctx context.Context, kidID int64, date model.Date) (*Board, error) {
	st := bind(s.db)
	caller, err := auth.Caller(ctx, st.members)
	if err != nil {
		return nil, err
	}
	if caller.IsChild() {
		if kidID != 0 && kidID != caller.ID {
			return nil, apperr.Unauthorized("kids can only view their own board")
		}
		kidID = caller.ID
	} else if _, err := st.loadKid(ctx, caller, kidID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.clock.Today()
	}

	assignments, err := st.chores.ListAssignmentsByKid(ctx, kidID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	completions, err := st.completions.ListByKidDate(ctx, kidID, date)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	b := &Board{KidID: kidID, Date: date, Items: []BoardItem{}}
	for _, a := range assignments {
		if !a.AppliesOn(date) {
			continue
		}
		c, err := st.chores.GetByID(ctx, a.ChoreID)
		if err != nil {
			return nil, fmt.Errorf("get chore: %w", err)
		}
		if c == nil || !c.Active {
			continue
		}
		status, completionID := ComputeStatus(c.ID, completions)
		if status == StatusPending {
			b.PendingToday += c.PriceCents
		}
		b.Items = append(b.Items, BoardItem{Chore: *c, Status: status, CompletionID: completionID})
	}

	totals, err := st.ledger.Totals(ctx, store.TotalsFilter{FamilyID: caller.FamilyID, KidID: &kidID, From: date, To: date})
	if err != nil {
		return nil, err
	}
	b.EarnedToday = totals.EarnedCents
	return b, nil
}

type Queue struct {
	Items        []model.PendingCompletion `json:"items"`
	PendingTotal int64                     `json:"pending_total"`
}

// PendingQueue returns the family's completions awaiting review.
func (s *Service) PendingQueue(ctx context.Context) (*Queue, error) {
	st := bind(s.db)
	caller, err := auth.Caller(ctx, st.members)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}

	items, err := st.completions.ListPending(ctx, caller.FamilyID)
	if err != nil {
		return nil, err
	}
	q := &Queue{Items: items}
	if q.Items == nil {
		q.Items = []model.PendingCompletion{}
	}
	for _, p := range items {
		q.PendingTotal += p.PriceCents
	}
	return q, nil
}
