package chore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// RecordCompletion files the calling kid's claim that a chore was done on
// date (today when zero). At most one pending or approved completion may
// exist per kid, chore and day; the database index enforces it even under
// concurrent submissions.
func (s *Service) RecordCompletion(ctx context.Context, choreID int64, date model.Date) (*model.ChoreCompletion, error) {
	today := s.clock.Today()
	if date.IsZero() {
		date = today
	}
	if date.After(today) {
		return nil, apperr.Validation("cannot record a chore for a future date")
	}

	var created *model.ChoreCompletion
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequireChild(caller); err != nil {
			return err
		}

		chore, err := st.loadChore(ctx, caller, choreID)
		if err != nil {
			return err
		}
		if !chore.Active {
			return apperr.InvalidState("chore %q is not active", chore.Title)
		}
		a, err := st.chores.GetAssignment(ctx, caller.ID, chore.ID)
		if err != nil {
			return fmt.Errorf("get assignment: %w", err)
		}
		if a == nil || !a.AppliesOn(date) {
			return apperr.InvalidState("chore %q is not assigned to you on %s", chore.Title, date)
		}

		created, err = st.completions.Create(ctx, model.ChoreCompletion{
			FamilyID:      caller.FamilyID,
			KidID:         caller.ID,
			ChoreID:       chore.ID,
			CompletedDate: date,
			SubmittedAt:   s.clock.Now(),
			Status:        model.StatusPendingApproval,
			Source:        model.SourceKidSubmit,
		})
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("chore %q was already submitted for %s", chore.Title, date)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion recorded", "completion_id", created.ID, "kid_id", created.KidID, "chore_id", created.ChoreID, "date", created.CompletedDate)
	s.notify(ctx, created, "submitted", nil)
	return created, nil
}

// RevertPendingCompletion lets the owning kid withdraw a claim that has not
// been reviewed yet. Nothing was posted, so the row is simply deleted.
func (s *Service) RevertPendingCompletion(ctx context.Context, completionID int64) error {
	var reverted *model.ChoreCompletion
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequireChild(caller); err != nil {
			return err
		}

		c, err := st.loadCompletion(ctx, caller, completionID)
		if err != nil {
			return err
		}
		if c.KidID != caller.ID {
			return apperr.Unauthorized("only the kid who submitted it can revert this completion")
		}
		if c.Status != model.StatusPendingApproval {
			return apperr.InvalidState("cannot revert a completion that is %s", c.Status)
		}

		ok, err := st.completions.DeletePending(ctx, c.ID, caller.ID)
		if err != nil {
			return err
		}
		if !ok {
			return st.statusError(ctx, c.ID, "revert")
		}
		reverted = c
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("completion reverted", "completion_id", reverted.ID, "kid_id", reverted.KidID)
	s.notify(ctx, reverted, "reverted", nil)
	return nil
}
