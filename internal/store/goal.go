package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type GoalStore struct {
	db DBTX
}

func NewGoalStore(db DBTX) *GoalStore {
	return &GoalStore{db: db}
}

func scanGoal(sc scanner) (*model.KidGoal, error) {
	var g model.KidGoal
	if err := sc.Scan(&g.ID, &g.FamilyID, &g.KidID, &g.Title, &g.TargetCents, &g.Active, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

const goalCols = `id, family_id, kid_id, title, target_cents, active, created_at`

func (s *GoalStore) Create(ctx context.Context, familyID, kidID int64, title string, targetCents int64) (*model.KidGoal, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO kid_goals (family_id, kid_id, title, target_cents, active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		familyID, kidID, title, targetCents, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GoalStore) GetByID(ctx context.Context, id int64) (*model.KidGoal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalCols+` FROM kid_goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) ListByKid(ctx context.Context, kidID int64) ([]model.KidGoal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalCols+` FROM kid_goals WHERE kid_id = ? ORDER BY active DESC, id ASC`, kidID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []model.KidGoal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func (s *GoalStore) SetActive(ctx context.Context, id int64, active bool) (*model.KidGoal, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE kid_goals SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return nil, fmt.Errorf("set goal active: %w", err)
	}
	return s.GetByID(ctx, id)
}
