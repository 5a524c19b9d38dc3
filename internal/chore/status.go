package chore

import "github.com/dukerupert/choreledger/internal/model"

// Status is how a chore looks on a kid's board for one day.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
)

// ComputeStatus derives a chore's board status from the kid's completions
// that day. Rejected and revoked completions free the chore up again.
func ComputeStatus(choreID int64, completions []model.ChoreCompletion) (Status, *int64) {
	status := StatusAvailable
	var completionID *int64
	for i := range completions {
		c := completions[i]
		if c.ChoreID != choreID {
			continue
		}
		switch c.Status {
		case model.StatusPendingApproval:
			return StatusPending, &c.ID
		case model.StatusApproved:
			status, completionID = StatusApproved, &c.ID
		}
	}
	return status, completionID
}
