package model

import "time"

type LedgerSource string

const (
	LedgerChoreEarning LedgerSource = "CHORE_EARNING"
	LedgerParentTopup  LedgerSource = "PARENT_TOPUP"
	LedgerAdjustment   LedgerSource = "ADJUSTMENT"
	LedgerReversal     LedgerSource = "REVERSAL"
)

// EarningSources are the sources summed into earnings totals: original
// postings plus the corrections that reference them.
var EarningSources = []LedgerSource{LedgerChoreEarning, LedgerAdjustment, LedgerReversal}

type LedgerTransaction struct {
	ID                 int64        `json:"id"`
	FamilyID           int64        `json:"family_id"`
	KidID              int64        `json:"kid_id"`
	CompletionID       *int64       `json:"completion_id"`
	TxnDate            Date         `json:"txn_date"`
	Source             LedgerSource `json:"source"`
	AmountCents        int64        `json:"amount_cents"`
	SpendCents         int64        `json:"spend_cents"`
	CharityCents       int64        `json:"charity_cents"`
	SavingsCents       int64        `json:"savings_cents"`
	InvestCents        int64        `json:"invest_cents"`
	ParentMatchCents   int64        `json:"parent_match_cents"`
	ParentPayableCents int64        `json:"parent_payable_cents"`
	LockUntil          Date         `json:"lock_until"`
	Description        string       `json:"description"`
	CreatedAt          time.Time    `json:"created_at"`
}

type Totals struct {
	EarnedCents        int64 `json:"earned_cents"`
	SpendCents         int64 `json:"spend_cents"`
	CharityCents       int64 `json:"charity_cents"`
	SavingsCents       int64 `json:"savings_cents"`
	InvestCents        int64 `json:"invest_cents"`
	ParentMatchCents   int64 `json:"parent_match_cents"`
	ParentPayableCents int64 `json:"parent_payable_cents"`
	TopupCents         int64 `json:"topup_cents"`
}

// Add accumulates o into t.
func (t *Totals) Add(o Totals) {
	t.EarnedCents += o.EarnedCents
	t.SpendCents += o.SpendCents
	t.CharityCents += o.CharityCents
	t.SavingsCents += o.SavingsCents
	t.InvestCents += o.InvestCents
	t.ParentMatchCents += o.ParentMatchCents
	t.ParentPayableCents += o.ParentPayableCents
	t.TopupCents += o.TopupCents
}

type KidTotals struct {
	KidID   int64  `json:"kid_id"`
	KidName string `json:"kid_name"`
	Totals
}

type Report struct {
	From   Date        `json:"from"`
	To     Date        `json:"to"`
	Kids   []KidTotals `json:"kids"`
	Family Totals      `json:"family"`
}

// Amounts are the monetary components of one or more ledger rows.
type Amounts struct {
	Amount        int64 `json:"amount_cents"`
	Spend         int64 `json:"spend_cents"`
	Charity       int64 `json:"charity_cents"`
	Savings       int64 `json:"savings_cents"`
	Invest        int64 `json:"invest_cents"`
	ParentMatch   int64 `json:"parent_match_cents"`
	ParentPayable int64 `json:"parent_payable_cents"`
}

// Amounts returns the row's monetary components.
func (t LedgerTransaction) Amounts() Amounts {
	return Amounts{
		Amount:        t.AmountCents,
		Spend:         t.SpendCents,
		Charity:       t.CharityCents,
		Savings:       t.SavingsCents,
		Invest:        t.InvestCents,
		ParentMatch:   t.ParentMatchCents,
		ParentPayable: t.ParentPayableCents,
	}
}

// SetAmounts overwrites the row's monetary components with a.
func (t *LedgerTransaction) SetAmounts(a Amounts) {
	t.AmountCents = a.Amount
	t.SpendCents = a.Spend
	t.CharityCents = a.Charity
	t.SavingsCents = a.Savings
	t.InvestCents = a.Invest
	t.ParentMatchCents = a.ParentMatch
	t.ParentPayableCents = a.ParentPayable
}

// Sub returns a - o field by field.
func (a Amounts) Sub(o Amounts) Amounts {
	return Amounts{
		Amount:        a.Amount - o.Amount,
		Spend:         a.Spend - o.Spend,
		Charity:       a.Charity - o.Charity,
		Savings:       a.Savings - o.Savings,
		Invest:        a.Invest - o.Invest,
		ParentMatch:   a.ParentMatch - o.ParentMatch,
		ParentPayable: a.ParentPayable - o.ParentPayable,
	}
}

// Neg returns the compensating amounts for a.
func (a Amounts) Neg() Amounts {
	return Amounts{}.Sub(a)
}

func (a Amounts) IsZero() bool { return a == Amounts{} }
