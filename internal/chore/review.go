package chore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// Result is a completion after a review action, with the ledger row the
// action posted, if any.
type Result struct {
	Completion  *model.ChoreCompletion    `json:"completion"`
	Transaction *model.LedgerTransaction `json:"transaction,omitempty"`
}

// Approve moves a pending completion to APPROVED and posts its earning.
// The status update is guarded on PENDING_APPROVAL, so of two concurrent
// reviews only one can succeed and only one earning is ever posted.
func (s *Service) Approve(ctx context.Context, completionID int64) (*Result, error) {
	res := &Result{}
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequirePrimaryApprover(caller); err != nil {
			return err
		}
		c, err := st.loadCompletion(ctx, caller, completionID)
		if err != nil {
			return err
		}

		ok, err := st.completions.Transition(ctx, c.ID, model.StatusPendingApproval, model.StatusApproved, nil, caller.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return st.statusError(ctx, c.ID, "approve")
		}

		chore, err := st.chores.GetByID(ctx, c.ChoreID)
		if err != nil {
			return fmt.Errorf("get chore: %w", err)
		}
		if chore == nil {
			return apperr.NotFound("chore not found")
		}
		if res.Transaction, err = s.postEarning(ctx, st, c, chore); err != nil {
			return err
		}
		res.Completion, err = st.completions.GetByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion approved", "completion_id", completionID, "txn_id", res.Transaction.ID,
		"amount", res.Transaction.AmountCents, "match", res.Transaction.ParentMatchCents)
	s.notify(ctx, res.Completion, "approved", txnData(res.Transaction))
	return res, nil
}

// Reject closes a pending completion with the reviewer's notes. Nothing is
// posted.
func (s *Service) Reject(ctx context.Context, completionID int64, notes string) (*model.ChoreCompletion, error) {
	var rejected *model.ChoreCompletion
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequirePrimaryApprover(caller); err != nil {
			return err
		}
		c, err := st.loadCompletion(ctx, caller, completionID)
		if err != nil {
			return err
		}

		ok, err := st.completions.Transition(ctx, c.ID, model.StatusPendingApproval, model.StatusRejected, &notes, caller.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return st.statusError(ctx, c.ID, "reject")
		}
		rejected, err = st.completions.GetByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion rejected", "completion_id", completionID)
	s.notify(ctx, rejected, "rejected", nil)
	return rejected, nil
}

// Adjust re-prices an approved completion. It allocates newAmount with the
// given percentages, matching against what is left of the kid's daily cap
// once this completion's own match is set aside, and posts the difference
// from the completion's current net as an ADJUSTMENT. The original posting
// is never edited.
func (s *Service) Adjust(ctx context.Context, completionID, newAmount int64, pct allocation.Percentages) (*Result, error) {
	if err := allocation.ValidateAmount(newAmount); err != nil {
		return nil, err
	}
	if err := pct.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequireOverrideApprover(caller); err != nil {
			return err
		}
		c, err := st.loadCompletion(ctx, caller, completionID)
		if err != nil {
			return err
		}

		// Re-stamping the reviewer doubles as the APPROVED guard.
		ok, err := st.completions.Transition(ctx, c.ID, model.StatusApproved, model.StatusApproved, nil, caller.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return st.statusError(ctx, c.ID, "adjust")
		}

		fs, err := st.familySettings(ctx, c.FamilyID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		_, policy := allocation.SettingsPolicy(fs)
		prior, err := st.ledger.MatchOnDate(ctx, c.KidID, c.CompletedDate, c.ID)
		if err != nil {
			return fmt.Errorf("prior match: %w", err)
		}
		split, err := allocation.Allocate(newAmount, pct, policy, prior)
		if err != nil {
			return err
		}

		net, err := st.ledger.NetByCompletion(ctx, c.ID)
		if err != nil {
			return err
		}
		delta := ledger.EarningAmounts(split).Sub(net)
		if !delta.IsZero() {
			chore, err := st.chores.GetByID(ctx, c.ChoreID)
			if err != nil {
				return fmt.Errorf("get chore: %w", err)
			}
			label := ""
			if chore != nil {
				label = chore.Title
			}
			res.Transaction, err = s.ledger.Post(ctx, st.ledger, ledger.Posting{
				FamilyID:     c.FamilyID,
				KidID:        c.KidID,
				CompletionID: &c.ID,
				Date:         c.CompletedDate,
				Source:       model.LedgerAdjustment,
				Amounts:      delta,
				Label:        label,
			})
			if err != nil {
				return err
			}
		}
		res.Completion, err = st.completions.GetByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion adjusted", "completion_id", completionID, "new_amount", newAmount, "posted", res.Transaction != nil)
	s.notify(ctx, res.Completion, "adjusted", txnData(res.Transaction))
	return res, nil
}

// Revoke marks an approved completion REVOKED and posts a REVERSAL equal
// to minus its net, so the completion contributes zero on every field.
func (s *Service) Revoke(ctx context.Context, completionID int64) (*Result, error) {
	res := &Result{}
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequireOverrideApprover(caller); err != nil {
			return err
		}
		c, err := st.loadCompletion(ctx, caller, completionID)
		if err != nil {
			return err
		}

		ok, err := st.completions.Transition(ctx, c.ID, model.StatusApproved, model.StatusRevoked, nil, caller.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return st.statusError(ctx, c.ID, "revoke")
		}

		net, err := st.ledger.NetByCompletion(ctx, c.ID)
		if err != nil {
			return err
		}
		if !net.IsZero() {
			res.Transaction, err = s.ledger.Post(ctx, st.ledger, ledger.Posting{
				FamilyID:     c.FamilyID,
				KidID:        c.KidID,
				CompletionID: &c.ID,
				Date:         c.CompletedDate,
				Source:       model.LedgerReversal,
				Amounts:      net.Neg(),
				Label:        "revoked completion",
			})
			if err != nil {
				return err
			}
		}
		res.Completion, err = st.completions.GetByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion revoked", "completion_id", completionID)
	s.notify(ctx, res.Completion, "revoked", txnData(res.Transaction))
	return res, nil
}

// BackfillRequest records work a kid did on an earlier day that never got
// submitted.
type BackfillRequest struct {
	ChoreID       int64      `json:"chore_id"`
	KidID         int64      `json:"kid_id"`
	CompletedDate model.Date `json:"completed_date"`
	Notes         string     `json:"notes"`
}

// Backfill creates an already-approved completion on the kid's behalf and
// posts its earning. The same one-per-kid-chore-day rule applies.
func (s *Service) Backfill(ctx context.Context, req BackfillRequest) (*Result, error) {
	if req.CompletedDate.IsZero() {
		return nil, apperr.Validation("completed_date is required")
	}
	if req.CompletedDate.After(s.clock.Today()) {
		return nil, apperr.Validation("cannot backfill a future date")
	}

	res := &Result{}
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := bind(tx)
		caller, err := auth.Caller(ctx, st.members)
		if err != nil {
			return err
		}
		if err := auth.RequireOverrideApprover(caller); err != nil {
			return err
		}
		chore, err := st.loadChore(ctx, caller, req.ChoreID)
		if err != nil {
			return err
		}
		kid, err := st.loadKid(ctx, caller, req.KidID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		c, err := st.completions.Create(ctx, model.ChoreCompletion{
			FamilyID:      caller.FamilyID,
			KidID:         kid.ID,
			ChoreID:       chore.ID,
			CompletedDate: req.CompletedDate,
			SubmittedAt:   now,
			Status:        model.StatusApproved,
			ReviewNotes:   req.Notes,
			ReviewedAt:    &now,
			ReviewedBy:    &caller.ID,
			Source:        model.SourceDadBackfill,
		})
		if store.IsUniqueViolation(err) {
			return apperr.Conflict("%s already has %q for %s", kid.Name, chore.Title, req.CompletedDate)
		}
		if err != nil {
			return err
		}

		if res.Transaction, err = s.postEarning(ctx, st, c, chore); err != nil {
			return err
		}
		res.Completion = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("completion backfilled", "completion_id", res.Completion.ID, "kid_id", req.KidID, "date", req.CompletedDate)
	s.notify(ctx, res.Completion, "backfilled", txnData(res.Transaction))
	return res, nil
}
