package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

// LedgerStore persists ledger_transactions. Rows are append-only apart from
// UpdateAllocation, which rewrites the split of a same-day earning.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanTxn(sc scanner) (*model.LedgerTransaction, error) {
	var t model.LedgerTransaction
	var completionID sql.NullInt64
	var description sql.NullString
	err := sc.Scan(
		&t.ID, &t.FamilyID, &t.KidID, &completionID, &t.TxnDate, &t.Source,
		&t.AmountCents, &t.SpendCents, &t.CharityCents, &t.SavingsCents, &t.InvestCents,
		&t.ParentMatchCents, &t.ParentPayableCents, &t.LockUntil, &description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if completionID.Valid {
		t.CompletionID = &completionID.Int64
	}
	t.Description = description.String
	return &t, nil
}

const txnCols = `id, family_id, kid_id, completion_id, txn_date, source, amount_cents, spend_cents, charity_cents, savings_cents, invest_cents, parent_match_cents, parent_payable_cents, lock_until, description, created_at`

// earningClause restricts a query to the earning class: original postings
// plus the corrections that reference them.
const earningClause = `source IN ('CHORE_EARNING', 'ADJUSTMENT', 'REVERSAL')`

const insertTxn = `INSERT INTO ledger_transactions (family_id, kid_id, completion_id, txn_date, source, amount_cents, spend_cents, charity_cents, savings_cents, invest_cents, parent_match_cents, parent_payable_cents, lock_until, description, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func txnArgs(t model.LedgerTransaction) []any {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return []any{
		t.FamilyID, t.KidID, nullInt64(t.CompletionID), t.TxnDate, t.Source,
		t.AmountCents, t.SpendCents, t.CharityCents, t.SavingsCents, t.InvestCents,
		t.ParentMatchCents, t.ParentPayableCents, t.LockUntil, t.Description, createdAt.UTC(),
	}
}

func (s *LedgerStore) Insert(ctx context.Context, t model.LedgerTransaction) (*model.LedgerTransaction, error) {
	result, err := s.db.ExecContext(ctx, insertTxn, txnArgs(t)...)
	if err != nil {
		return nil, fmt.Errorf("insert ledger transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// InsertTopup appends a PARENT_TOPUP row unless the kid already has one for
// that date. It reports whether a row was written.
func (s *LedgerStore) InsertTopup(ctx context.Context, t model.LedgerTransaction) (bool, error) {
	t.Source = model.LedgerParentTopup
	result, err := s.db.ExecContext(ctx, insertTxn+` ON CONFLICT DO NOTHING`, txnArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("insert topup: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *LedgerStore) GetByID(ctx context.Context, id int64) (*model.LedgerTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+txnCols+` FROM ledger_transactions WHERE id = ?`, id)
	t, err := scanTxn(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger transaction: %w", err)
	}
	return t, nil
}

// UpdateAllocation rewrites the split of an existing row. The amount is
// never changed.
func (s *LedgerStore) UpdateAllocation(ctx context.Context, id int64, a model.Amounts, lockUntil model.Date) (*model.LedgerTransaction, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ledger_transactions
		 SET spend_cents = ?, charity_cents = ?, savings_cents = ?, invest_cents = ?,
		     parent_match_cents = ?, parent_payable_cents = ?, lock_until = ?
		 WHERE id = ?`,
		a.Spend, a.Charity, a.Savings, a.Invest, a.ParentMatch, a.ParentPayable, lockUntil, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update allocation: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ListByCompletion returns every row linked to a completion, oldest first.
func (s *LedgerStore) ListByCompletion(ctx context.Context, completionID int64) ([]model.LedgerTransaction, error) {
	return s.list(ctx,
		`SELECT `+txnCols+` FROM ledger_transactions WHERE completion_id = ? ORDER BY id ASC`, completionID)
}

// NetByCompletion sums every row linked to a completion.
func (s *LedgerStore) NetByCompletion(ctx context.Context, completionID int64) (model.Amounts, error) {
	var a model.Amounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0), COALESCE(SUM(spend_cents), 0), COALESCE(SUM(charity_cents), 0),
		        COALESCE(SUM(savings_cents), 0), COALESCE(SUM(invest_cents), 0),
		        COALESCE(SUM(parent_match_cents), 0), COALESCE(SUM(parent_payable_cents), 0)
		 FROM ledger_transactions WHERE completion_id = ?`, completionID,
	).Scan(&a.Amount, &a.Spend, &a.Charity, &a.Savings, &a.Invest, &a.ParentMatch, &a.ParentPayable)
	if err != nil {
		return model.Amounts{}, fmt.Errorf("net by completion: %w", err)
	}
	return a, nil
}

// MatchOnDate sums the parent match already granted to a kid on date in the
// earning class, ignoring rows linked to excludeCompletionID (0 excludes
// nothing).
func (s *LedgerStore) MatchOnDate(ctx context.Context, kidID int64, date model.Date, excludeCompletionID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(parent_match_cents), 0) FROM ledger_transactions
		 WHERE kid_id = ? AND txn_date = ? AND `+earningClause+`
		   AND (completion_id IS NULL OR completion_id != ?)`,
		kidID, date, excludeCompletionID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("match on date: %w", err)
	}
	return total, nil
}

// MatchByKid sums the earning-class parent match recorded for every kid in
// the family on date. Kids with no rows are absent from the map.
func (s *LedgerStore) MatchByKid(ctx context.Context, familyID int64, date model.Date) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kid_id, SUM(parent_match_cents) FROM ledger_transactions
		 WHERE family_id = ? AND txn_date = ? AND `+earningClause+`
		 GROUP BY kid_id ORDER BY kid_id`,
		familyID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("match by kid: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var kidID, match int64
		if err := rows.Scan(&kidID, &match); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out[kidID] = match
	}
	return out, rows.Err()
}

// TotalsFilter scopes an aggregation. Zero dates leave that end of the
// range open; a nil KidID covers the whole family.
type TotalsFilter struct {
	FamilyID int64
	KidID    *int64
	From     model.Date
	To       model.Date
}

const totalsSelect = `SELECT
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN amount_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN spend_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN charity_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN savings_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN invest_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN parent_match_cents END), 0),
	COALESCE(SUM(CASE WHEN ` + earningClause + ` THEN parent_payable_cents END), 0),
	COALESCE(SUM(CASE WHEN source = 'PARENT_TOPUP' THEN amount_cents END), 0)`

const rangeClause = ` AND (? IS NULL OR txn_date >= ?) AND (? IS NULL OR txn_date <= ?)`

// Totals sums the filtered rows. An empty range yields all-zero totals.
func (s *LedgerStore) Totals(ctx context.Context, f TotalsFilter) (model.Totals, error) {
	query := totalsSelect + ` FROM ledger_transactions WHERE family_id = ?` + rangeClause
	args := []any{f.FamilyID, f.From, f.From, f.To, f.To}
	if f.KidID != nil {
		query += ` AND kid_id = ?`
		args = append(args, *f.KidID)
	}

	var t model.Totals
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&t.EarnedCents, &t.SpendCents, &t.CharityCents, &t.SavingsCents, &t.InvestCents,
		&t.ParentMatchCents, &t.ParentPayableCents, &t.TopupCents,
	)
	if err != nil {
		return model.Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}

// TotalsByKid returns one row per kid in the family, including kids with no
// activity in range.
func (s *LedgerStore) TotalsByKid(ctx context.Context, familyID int64, from, to model.Date) ([]model.KidTotals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.name,
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.amount_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.spend_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.charity_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.savings_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.invest_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.parent_match_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.`+earningClause+` THEN lt.parent_payable_cents END), 0),
		   COALESCE(SUM(CASE WHEN lt.source = 'PARENT_TOPUP' THEN lt.amount_cents END), 0)
		 FROM members m
		 LEFT JOIN ledger_transactions lt ON lt.kid_id = m.id
		   AND (? IS NULL OR lt.txn_date >= ?) AND (? IS NULL OR lt.txn_date <= ?)
		 WHERE m.family_id = ? AND m.role = 'child'
		 GROUP BY m.id, m.name
		 ORDER BY m.id`,
		from, from, to, to, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("totals by kid: %w", err)
	}
	defer rows.Close()

	var out []model.KidTotals
	for rows.Next() {
		var k model.KidTotals
		err := rows.Scan(&k.KidID, &k.KidName,
			&k.EarnedCents, &k.SpendCents, &k.CharityCents, &k.SavingsCents, &k.InvestCents,
			&k.ParentMatchCents, &k.ParentPayableCents, &k.TopupCents,
		)
		if err != nil {
			return nil, fmt.Errorf("scan kid totals: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Recent returns the newest rows for a family, or for one kid when kidID is
// set, by creation time descending.
func (s *LedgerStore) Recent(ctx context.Context, familyID int64, kidID *int64, limit int) ([]model.LedgerTransaction, error) {
	if kidID != nil {
		return s.list(ctx,
			`SELECT `+txnCols+` FROM ledger_transactions WHERE family_id = ? AND kid_id = ?
			 ORDER BY created_at DESC, id DESC LIMIT ?`, familyID, *kidID, limit)
	}
	return s.list(ctx,
		`SELECT `+txnCols+` FROM ledger_transactions WHERE family_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, familyID, limit)
}

func (s *LedgerStore) list(ctx context.Context, query string, args ...any) ([]model.LedgerTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger transactions: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerTransaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
