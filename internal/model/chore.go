package model

import "time"

type Chore struct {
	ID         int64     `json:"id"`
	FamilyID   int64     `json:"family_id"`
	Title      string    `json:"title"`
	PriceCents int64     `json:"price_cents"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CompletionStatus string

const (
	StatusPendingApproval CompletionStatus = "PENDING_APPROVAL"
	StatusApproved        CompletionStatus = "APPROVED"
	StatusRejected        CompletionStatus = "REJECTED"
	StatusRevoked         CompletionStatus = "REVOKED"
)

type CompletionSource string

const (
	SourceKidSubmit   CompletionSource = "KID_SUBMIT"
	SourceDadBackfill CompletionSource = "DAD_BACKFILL"
)

type ChoreCompletion struct {
	ID            int64            `json:"id"`
	FamilyID      int64            `json:"family_id"`
	KidID         int64            `json:"kid_id"`
	ChoreID       int64            `json:"chore_id"`
	CompletedDate Date             `json:"completed_date"`
	SubmittedAt   time.Time        `json:"submitted_at"`
	Status        CompletionStatus `json:"status"`
	ReviewNotes   string           `json:"review_notes"`
	ReviewedAt    *time.Time       `json:"reviewed_at"`
	ReviewedBy    *int64           `json:"reviewed_by"`
	Source        CompletionSource `json:"source"`
}

// PendingCompletion is a row of the approvals queue.
type PendingCompletion struct {
	ChoreCompletion
	KidName    string `json:"kid_name"`
	ChoreTitle string `json:"chore_title"`
	PriceCents int64  `json:"price_cents"`
}

type Assignment struct {
	ID         int64     `json:"id"`
	FamilyID   int64     `json:"family_id"`
	KidID      int64     `json:"kid_id"`
	ChoreID    int64     `json:"chore_id"`
	Daily      bool      `json:"is_daily"`
	ManualDate Date      `json:"manual_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppliesOn reports whether the assignment puts the chore on the kid's board for date.
func (a Assignment) AppliesOn(date Date) bool {
	if a.Daily {
		return true
	}
	return !a.ManualDate.IsZero() && a.ManualDate.Equal(date)
}
