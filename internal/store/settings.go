package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

type SettingsStore struct {
	db DBTX
}

func NewSettingsStore(db DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsCols = `family_id, match_enabled, match_cap_cents_per_kid_per_day, default_spend_pct, default_charity_pct, default_savings_pct, updated_at`

// Get returns the family's settings, or nil if none were ever written.
func (s *SettingsStore) Get(ctx context.Context, familyID int64) (*model.FamilySettings, error) {
	var fs model.FamilySettings
	err := s.db.QueryRowContext(ctx,
		`SELECT `+settingsCols+` FROM family_settings WHERE family_id = ?`, familyID,
	).Scan(&fs.FamilyID, &fs.MatchEnabled, &fs.MatchCapCentsPerKidPerDay,
		&fs.DefaultSpendPct, &fs.DefaultCharityPct, &fs.DefaultSavingsPct, &fs.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get family settings: %w", err)
	}
	return &fs, nil
}

// Upsert writes fs, replacing any existing row for the family.
func (s *SettingsStore) Upsert(ctx context.Context, fs model.FamilySettings) (*model.FamilySettings, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO family_settings (`+settingsCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(family_id) DO UPDATE SET
		   match_enabled = excluded.match_enabled,
		   match_cap_cents_per_kid_per_day = excluded.match_cap_cents_per_kid_per_day,
		   default_spend_pct = excluded.default_spend_pct,
		   default_charity_pct = excluded.default_charity_pct,
		   default_savings_pct = excluded.default_savings_pct,
		   updated_at = excluded.updated_at`,
		fs.FamilyID, fs.MatchEnabled, fs.MatchCapCentsPerKidPerDay,
		fs.DefaultSpendPct, fs.DefaultCharityPct, fs.DefaultSavingsPct, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert family settings: %w", err)
	}
	return s.Get(ctx, fs.FamilyID)
}
