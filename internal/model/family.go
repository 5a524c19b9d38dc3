package model

import "time"

const (
	RoleParent = "parent"
	RoleChild  = "child"

	// ParentTypeMom is the primary approver; ParentTypeDad holds the override capability.
	ParentTypeMom = "mom"
	ParentTypeDad = "dad"
)

type Family struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	ParentType  string    `json:"parent_type,omitempty"`
	AvatarEmoji string    `json:"avatar_emoji"`
	HasPIN      bool      `json:"has_pin"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m Member) IsParent() bool { return m.Role == RoleParent }

func (m Member) IsChild() bool { return m.Role == RoleChild }

type FamilySettings struct {
	FamilyID                  int64     `json:"family_id"`
	MatchEnabled              bool      `json:"match_enabled"`
	MatchCapCentsPerKidPerDay int64     `json:"match_cap_cents_per_kid_per_day"`
	DefaultSpendPct           int       `json:"default_spend_pct"`
	DefaultCharityPct         int       `json:"default_charity_pct"`
	DefaultSavingsPct         int       `json:"default_savings_pct"`
	UpdatedAt                 time.Time `json:"updated_at"`
}
