package model

import "time"

type KidGoal struct {
	ID          int64     `json:"id"`
	FamilyID    int64     `json:"family_id"`
	KidID       int64     `json:"kid_id"`
	Title       string    `json:"title"`
	TargetCents int64     `json:"target_cents"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type GoalProgress struct {
	KidGoal
	SavedCents int64 `json:"saved_cents"`
	Percent    int   `json:"percent"`
}
