package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type MemberStore struct {
	db DBTX
}

func NewMemberStore(db DBTX) *MemberStore {
	return &MemberStore{db: db}
}

func scanMember(sc scanner) (*model.Member, error) {
	var m model.Member
	var parentType sql.NullString
	err := sc.Scan(&m.ID, &m.FamilyID, &m.Name, &m.Role, &parentType, &m.AvatarEmoji, &m.HasPIN, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.ParentType = parentType.String
	return &m, nil
}

const memberCols = `id, family_id, name, role, parent_type, avatar_emoji, pin_hash IS NOT NULL, created_at, updated_at`

func (s *MemberStore) Create(ctx context.Context, familyID int64, name, role, parentType, avatarEmoji string) (*model.Member, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (family_id, name, role, parent_type, avatar_emoji, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		familyID, name, role, nullString(parentType), avatarEmoji, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Member, error) {
	return s.list(ctx, `SELECT `+memberCols+` FROM members WHERE family_id = ? ORDER BY role DESC, id ASC`, familyID)
}

func (s *MemberStore) ListKids(ctx context.Context, familyID int64) ([]model.Member, error) {
	return s.list(ctx, `SELECT `+memberCols+` FROM members WHERE family_id = ? AND role = 'child' ORDER BY id ASC`, familyID)
}

func (s *MemberStore) list(ctx context.Context, query string, args ...any) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) Update(ctx context.Context, id int64, name, parentType, avatarEmoji string) (*model.Member, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, parent_type = ?, avatar_emoji = ?, updated_at = ? WHERE id = ?`,
		name, nullString(parentType), avatarEmoji, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) SetPIN(ctx context.Context, id int64, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE members SET pin_hash = ? WHERE id = ?`, hashedPIN, id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// GetPINHash returns the stored hash, or "" when the member has no PIN.
func (s *MemberStore) GetPINHash(ctx context.Context, id int64) (string, error) {
	var pin sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT pin_hash FROM members WHERE id = ?`, id).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query pin: %w", err)
	}
	return pin.String, nil
}

func (s *MemberStore) NameExists(ctx context.Context, familyID int64, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE family_id = ? AND name = ? AND id != ?`,
		familyID, name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
