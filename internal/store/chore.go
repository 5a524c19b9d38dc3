package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

// --- Chore methods ---

func scanChore(sc scanner) (*model.Chore, error) {
	var c model.Chore
	err := sc.Scan(&c.ID, &c.FamilyID, &c.Title, &c.PriceCents, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const choreCols = `id, family_id, title, price_cents, active, created_at, updated_at`

func (s *ChoreStore) Create(ctx context.Context, familyID int64, title string, priceCents int64) (*model.Chore, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (family_id, title, price_cents, active, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`,
		familyID, title, priceCents, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) ListByFamily(ctx context.Context, familyID int64, activeOnly bool) ([]model.Chore, error) {
	query := `SELECT ` + choreCols + ` FROM chores WHERE family_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY title ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) Update(ctx context.Context, id int64, title string, priceCents int64, active bool) (*model.Chore, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chores SET title = ?, price_cents = ?, active = ?, updated_at = ? WHERE id = ?`,
		title, priceCents, active, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update chore: %w", err)
	}
	return s.GetByID(ctx, id)
}

// --- Assignment methods ---

func scanAssignment(sc scanner) (*model.Assignment, error) {
	var a model.Assignment
	err := sc.Scan(&a.ID, &a.FamilyID, &a.KidID, &a.ChoreID, &a.Daily, &a.ManualDate, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const assignmentCols = `id, family_id, kid_id, chore_id, is_daily, manual_date, created_at`

// Assign puts the chore on the kid's board, either every day or on one
// manual date. Re-assigning replaces the previous mode.
func (s *ChoreStore) Assign(ctx context.Context, familyID, kidID, choreID int64, daily bool, manualDate model.Date) (*model.Assignment, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_assignments (family_id, kid_id, chore_id, is_daily, manual_date, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chore_id, kid_id) DO UPDATE SET is_daily = excluded.is_daily, manual_date = excluded.manual_date`,
		familyID, kidID, choreID, daily, manualDate, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert assignment: %w", err)
	}
	return s.GetAssignment(ctx, kidID, choreID)
}

func (s *ChoreStore) Unassign(ctx context.Context, kidID, choreID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chore_assignments WHERE kid_id = ? AND chore_id = ?`, kidID, choreID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (s *ChoreStore) GetAssignment(ctx context.Context, kidID, choreID int64) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE kid_id = ? AND chore_id = ?`, kidID, choreID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *ChoreStore) ListAssignments(ctx context.Context, familyID int64) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE family_id = ? ORDER BY kid_id, chore_id`, familyID)
}

func (s *ChoreStore) ListAssignmentsByKid(ctx context.Context, kidID int64) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		`SELECT `+assignmentCols+` FROM chore_assignments WHERE kid_id = ? ORDER BY chore_id`, kidID)
}

func (s *ChoreStore) listAssignments(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
