package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// Progress computes how far saved gets toward target, capped at 100%.
func Progress(g model.KidGoal, saved int64) model.GoalProgress {
	p := model.GoalProgress{KidGoal: g, SavedCents: saved}
	switch {
	case g.TargetCents <= 0:
		p.Percent = 100
	case saved <= 0:
		p.Percent = 0
	default:
		p.Percent = int(min(100, saved*100/g.TargetCents))
	}
	return p
}

// Goals lists a kid's goals with progress measured against the kid's
// cumulative invest total.
func (s *Service) Goals(ctx context.Context, kidID int64) ([]model.GoalProgress, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return nil, err
	}
	scope, err := s.scopeKid(ctx, caller, kidID)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		return nil, apperr.Validation("kid_id is required")
	}

	goals, err := store.NewGoalStore(s.db).ListByKid(ctx, *scope)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	totals, err := store.NewLedgerStore(s.db).Totals(ctx, store.TotalsFilter{FamilyID: caller.FamilyID, KidID: scope})
	if err != nil {
		return nil, fmt.Errorf("invest total: %w", err)
	}

	out := make([]model.GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, Progress(g, totals.InvestCents))
	}
	return out, nil
}

// CreateGoal adds a goal for a kid. Parents only.
func (s *Service) CreateGoal(ctx context.Context, kidID int64, title string, targetCents int64) (*model.KidGoal, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	if targetCents < 0 {
		return nil, apperr.Validation("target must be >= 0")
	}
	if _, err := s.scopeKid(ctx, caller, kidID); err != nil {
		return nil, err
	}

	g, err := store.NewGoalStore(s.db).Create(ctx, caller.FamilyID, kidID, title, targetCents)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	s.notifier.Notify(ctx, events.New(g.FamilyID, events.EntityGoal, "created", g.ID, map[string]any{"kid_id": g.KidID}))
	return g, nil
}

// SetGoalActive pauses or resumes a goal. Parents only.
func (s *Service) SetGoalActive(ctx context.Context, goalID int64, active bool) (*model.KidGoal, error) {
	caller, err := auth.Caller(ctx, store.NewMemberStore(s.db))
	if err != nil {
		return nil, err
	}
	if err := auth.RequireParent(caller); err != nil {
		return nil, err
	}

	gs := store.NewGoalStore(s.db)
	g, err := gs.GetByID(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	if g == nil || g.FamilyID != caller.FamilyID {
		return nil, apperr.NotFound("goal not found")
	}

	g, err = gs.SetActive(ctx, goalID, active)
	if err != nil {
		return nil, fmt.Errorf("set goal active: %w", err)
	}
	action := "resumed"
	if !active {
		action = "paused"
	}
	s.notifier.Notify(ctx, events.New(g.FamilyID, events.EntityGoal, action, g.ID, map[string]any{"kid_id": g.KidID}))
	return g, nil
}
