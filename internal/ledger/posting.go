package ledger

import (
	"context"
	"fmt"

	"github.com/dukerupert/choreledger/internal/allocation"
	"github.com/dukerupert/choreledger/internal/apperr"
	"github.com/dukerupert/choreledger/internal/model"
	"github.com/dukerupert/choreledger/internal/money"
)

// Store is the persistence the ledger needs. *store.LedgerStore satisfies
// it, bound either to the database or to a transaction.
type Store interface {
	Insert(ctx context.Context, t model.LedgerTransaction) (*model.LedgerTransaction, error)
	InsertTopup(ctx context.Context, t model.LedgerTransaction) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.LedgerTransaction, error)
	ListByCompletion(ctx context.Context, completionID int64) ([]model.LedgerTransaction, error)
	NetByCompletion(ctx context.Context, completionID int64) (model.Amounts, error)
	MatchOnDate(ctx context.Context, kidID int64, date model.Date, excludeCompletionID int64) (int64, error)
	UpdateAllocation(ctx context.Context, id int64, a model.Amounts, lockUntil model.Date) (*model.LedgerTransaction, error)
}

// Posting is one row to append to the ledger.
type Posting struct {
	FamilyID     int64
	KidID        int64
	CompletionID *int64
	Date         model.Date
	Source       model.LedgerSource
	Amounts      model.Amounts
	Label        string
}

// EarningAmounts turns an allocation into ledger components.
func EarningAmounts(s allocation.Split) model.Amounts {
	return model.Amounts{
		Amount:        s.Amount,
		Spend:         s.Spend,
		Charity:       s.Charity,
		Savings:       s.Savings,
		Invest:        s.Invest(),
		ParentMatch:   s.Match,
		ParentPayable: s.ParentPayable(),
	}
}

// checkBalanced verifies the relations every row must satisfy whatever its
// sign: the buckets add up to the amount, invest is savings plus match and
// the parents pay the amount plus match.
func checkBalanced(a model.Amounts) error {
	if a.Spend+a.Charity+a.Savings != a.Amount {
		return apperr.Validation("spend + charity + savings must equal amount %d", a.Amount)
	}
	if a.Invest != a.Savings+a.ParentMatch {
		return apperr.Validation("invest must equal savings + match")
	}
	if a.ParentPayable != a.Amount+a.ParentMatch {
		return apperr.Validation("parent payable must equal amount + match")
	}
	return nil
}

// ValidateEarning checks an original earning: balanced and no negative
// component.
func ValidateEarning(a model.Amounts) error {
	if a.Amount < 0 || a.Spend < 0 || a.Charity < 0 || a.Savings < 0 || a.ParentMatch < 0 {
		return apperr.Validation("earning components must be non-negative")
	}
	return checkBalanced(a)
}

// Post validates p and appends it through st. CHORE_EARNING rows must be
// non-negative; correction rows may carry negative components but must
// still balance.
func (s *Service) Post(ctx context.Context, st Store, p Posting) (*model.LedgerTransaction, error) {
	switch p.Source {
	case model.LedgerChoreEarning:
		if err := ValidateEarning(p.Amounts); err != nil {
			return nil, err
		}
	case model.LedgerAdjustment, model.LedgerReversal:
		if p.CompletionID == nil {
			return nil, apperr.Validation("%s must reference a completion", p.Source)
		}
		if err := checkBalanced(p.Amounts); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("cannot post source %q", p.Source)
	}
	if p.Date.IsZero() {
		return nil, apperr.Validation("posting date is required")
	}

	txn := model.LedgerTransaction{
		FamilyID:     p.FamilyID,
		KidID:        p.KidID,
		CompletionID: p.CompletionID,
		TxnDate:      p.Date,
		Source:       p.Source,
		LockUntil:    s.lock.LockUntil(p.Date, p.Amounts.Invest),
		Description:  Describe(p.Source, p.Label, p.Amounts),
		CreatedAt:    s.clock.Now(),
	}
	txn.SetAmounts(p.Amounts)

	row, err := st.Insert(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", p.Source, err)
	}
	s.metrics.LedgerPosted(string(p.Source), p.Amounts.Amount)
	return row, nil
}

// Describe renders the human-readable description stored on a row.
func Describe(source model.LedgerSource, label string, a model.Amounts) string {
	var verb string
	switch source {
	case model.LedgerChoreEarning:
		verb = "Earned"
	case model.LedgerAdjustment:
		verb = "Adjusted"
	case model.LedgerReversal:
		verb = "Reversed"
	case model.LedgerParentTopup:
		return fmt.Sprintf("Parent match top-up %s", money.Format(a.Amount))
	}
	desc := fmt.Sprintf("%s %s", verb, money.Format(a.Amount))
	if label != "" {
		desc += " for " + label
	}
	return fmt.Sprintf("%s (spend %s, charity %s, savings %s, match %s)", desc,
		money.Format(a.Spend), money.Format(a.Charity), money.Format(a.Savings), money.Format(a.ParentMatch))
}

// PostTopup records the parents' match settlement for a kid on date. The
// row carries the matched amount as amount, match and payable. It reports
// false, without error, when the kid already has a top-up for that date.
func (s *Service) PostTopup(ctx context.Context, st Store, familyID, kidID int64, date model.Date, amount int64) (bool, error) {
	if amount <= 0 {
		return false, apperr.Validation("top-up must be positive")
	}
	a := model.Amounts{Amount: amount, ParentMatch: amount, ParentPayable: amount}
	txn := model.LedgerTransaction{
		FamilyID:    familyID,
		KidID:       kidID,
		TxnDate:     date,
		Source:      model.LedgerParentTopup,
		Description: Describe(model.LedgerParentTopup, "", a),
		CreatedAt:   s.clock.Now(),
	}
	txn.SetAmounts(a)

	ok, err := st.InsertTopup(ctx, txn)
	if err != nil {
		return false, err
	}
	if ok {
		s.metrics.LedgerPosted(string(model.LedgerParentTopup), amount)
	}
	return ok, nil
}
