package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/auth"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/store"
)

// Reallocation is a kid's requested split of one earning.
type Reallocation struct {
	Spend   int64 `json:"spend_cents"`
	Charity int64 `json:"charity_cents"`
	Invest  int64 `json:"invest_cents"`
	Savings int64 `json:"savings_cents"`
}

// OverrideAllocation lets the owning kid re-split an earning on the day it
// was earned. The amount never changes. The parent match follows savings
// down but never up: match' = min(current match, new savings), and invest
// must equal savings + match'.
func (s *Service) OverrideAllocation(ctx context.Context, txnID int64, req Reallocation) (*model.LedgerTransaction, error) {
	var updated *model.LedgerTransaction

	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		caller, err := auth.Caller(ctx, store.NewMemberStore(tx))
		if err != nil {
			return err
		}
		if err := auth.RequireChild(caller); err != nil {
			return err
		}

		ls := store.NewLedgerStore(tx)
		txn, err := ls.GetByID(ctx, txnID)
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		if txn == nil || txn.FamilyID != caller.FamilyID {
			return apperr.NotFound("transaction not found")
		}
		if txn.KidID != caller.ID {
			return apperr.Unauthorized("only the kid who earned it can change this allocation")
		}
		if txn.Source != model.LedgerChoreEarning || txn.CompletionID == nil {
			return apperr.InvalidState("only chore earnings can be reallocated")
		}
		if !txn.TxnDate.Equal(s.clock.Today()) {
			return apperr.InvalidState("allocation can only be changed on the day it was earned")
		}

		completion, err := store.NewCompletionStore(tx).GetByID(ctx, *txn.CompletionID)
		if err != nil {
			return fmt.Errorf("get completion: %w", err)
		}
		if completion == nil || completion.Status != model.StatusApproved {
			return apperr.InvalidState("completion is no longer approved")
		}
		linked, err := ls.ListByCompletion(ctx, *txn.CompletionID)
		if err != nil {
			return fmt.Errorf("list linked rows: %w", err)
		}
		if len(linked) != 1 {
			return apperr.InvalidState("allocation is locked after a parent correction")
		}

		next, err := reallocate(txn.Amounts(), req)
		if err != nil {
			return err
		}

		updated, err = ls.UpdateAllocation(ctx, txn.ID, next, s.lock.LockUntil(txn.TxnDate, next.Invest))
		if err != nil {
			return fmt.Errorf("override allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("allocation overridden", "txn_id", updated.ID, "kid_id", updated.KidID,
		"spend", updated.SpendCents, "charity", updated.CharityCents, "savings", updated.SavingsCents)
	s.notifier.Notify(ctx, events.New(updated.FamilyID, events.EntityLedger, "reallocated", updated.ID,
		map[string]any{"kid_id": updated.KidID}))
	return updated, nil
}

// reallocate validates req against the current components and returns the
// new ones.
func reallocate(cur model.Amounts, req Reallocation) (model.Amounts, error) {
	if req.Spend < 0 || req.Charity < 0 || req.Invest < 0 || req.Savings < 0 {
		return model.Amounts{}, apperr.Validation("allocation values must be non-negative")
	}
	if req.Spend+req.Charity+req.Savings != cur.Amount {
		return model.Amounts{}, apperr.Validation("spend + charity + savings must equal %d", cur.Amount)
	}
	match := min(cur.ParentMatch, req.Savings)
	if req.Invest != req.Savings+match {
		return model.Amounts{}, apperr.Validation("invest must equal savings + match (%d)", req.Savings+match)
	}
	return model.Amounts{
		Amount:        cur.Amount,
		Spend:         req.Spend,
		Charity:       req.Charity,
		Savings:       req.Savings,
		Invest:        req.Invest,
		ParentMatch:   match,
		ParentPayable: cur.Amount + match,
	}, nil
}
