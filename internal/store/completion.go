package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type CompletionStore struct {
	db DBTX
}

func NewCompletionStore(db DBTX) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(sc scanner) (*model.ChoreCompletion, error) {
	var c model.ChoreCompletion
	var reviewedAt sql.NullTime
	var reviewedBy sql.NullInt64
	err := sc.Scan(
		&c.ID, &c.FamilyID, &c.KidID, &c.ChoreID, &c.CompletedDate, &c.SubmittedAt,
		&c.Status, &c.ReviewNotes, &reviewedAt, &reviewedBy, &c.Source,
	)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		c.ReviewedAt = &reviewedAt.Time
	}
	if reviewedBy.Valid {
		c.ReviewedBy = &reviewedBy.Int64
	}
	return &c, nil
}

const completionCols = `id, family_id, kid_id, chore_id, completed_date, submitted_at, status, review_notes, reviewed_at, reviewed_by, source`

// Create inserts c. A second live completion for the same kid, chore and
// day violates idx_completions_active; callers detect it with
// IsUniqueViolation.
func (s *CompletionStore) Create(ctx context.Context, c model.ChoreCompletion) (*model.ChoreCompletion, error) {
	var reviewedAt sql.NullTime
	if c.ReviewedAt != nil {
		reviewedAt = sql.NullTime{Time: c.ReviewedAt.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_completions (family_id, kid_id, chore_id, completed_date, submitted_at, status, review_notes, reviewed_at, reviewed_by, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FamilyID, c.KidID, c.ChoreID, c.CompletedDate, c.SubmittedAt.UTC(),
		c.Status, c.ReviewNotes, reviewedAt, nullInt64(c.ReviewedBy), c.Source,
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CompletionStore) GetByID(ctx context.Context, id int64) (*model.ChoreCompletion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// DeletePending removes the completion only while it is still pending and
// owned by kidID. It reports whether a row was deleted.
func (s *CompletionStore) DeletePending(ctx context.Context, id, kidID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM chore_completions WHERE id = ? AND kid_id = ? AND status = ?`,
		id, kidID, model.StatusPendingApproval,
	)
	if err != nil {
		return false, fmt.Errorf("delete pending completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Transition moves the completion from one status to another, guarded by
// the current status. It reports false when the row was not in from, so
// two concurrent reviewers cannot both succeed.
func (s *CompletionStore) Transition(ctx context.Context, id int64, from, to model.CompletionStatus, notes *string, reviewerID int64, at time.Time) (bool, error) {
	var result sql.Result
	var err error
	if notes != nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE chore_completions SET status = ?, review_notes = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ? AND status = ?`,
			to, *notes, at.UTC(), reviewerID, id, from,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE chore_completions SET status = ?, reviewed_at = ?, reviewed_by = ? WHERE id = ? AND status = ?`,
			to, at.UTC(), reviewerID, id, from,
		)
	}
	if err != nil {
		return false, fmt.Errorf("transition completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListPending returns the family's approvals queue, oldest first.
func (s *CompletionStore) ListPending(ctx context.Context, familyID int64) ([]model.PendingCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cc.id, cc.family_id, cc.kid_id, cc.chore_id, cc.completed_date, cc.submitted_at, cc.status,
		        cc.review_notes, cc.reviewed_at, cc.reviewed_by, cc.source,
		        m.name, c.title, c.price_cents
		 FROM chore_completions cc
		 JOIN members m ON m.id = cc.kid_id
		 JOIN chores c ON c.id = cc.chore_id
		 WHERE cc.family_id = ? AND cc.status = ?
		 ORDER BY cc.submitted_at ASC, cc.id ASC`,
		familyID, model.StatusPendingApproval,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending completions: %w", err)
	}
	defer rows.Close()

	var out []model.PendingCompletion
	for rows.Next() {
		var p model.PendingCompletion
		var reviewedAt sql.NullTime
		var reviewedBy sql.NullInt64
		err := rows.Scan(
			&p.ID, &p.FamilyID, &p.KidID, &p.ChoreID, &p.CompletedDate, &p.SubmittedAt, &p.Status,
			&p.ReviewNotes, &reviewedAt, &reviewedBy, &p.Source,
			&p.KidName, &p.ChoreTitle, &p.PriceCents,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pending completion: %w", err)
		}
		if reviewedAt.Valid {
			p.ReviewedAt = &reviewedAt.Time
		}
		if reviewedBy.Valid {
			p.ReviewedBy = &reviewedBy.Int64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListByKidDate returns the kid's completions for one day in any status.
func (s *CompletionStore) ListByKidDate(ctx context.Context, kidID int64, date model.Date) ([]model.ChoreCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions WHERE kid_id = ? AND completed_date = ? ORDER BY id ASC`,
		kidID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
