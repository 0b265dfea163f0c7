package payment

import "time"

// Status is the payment request lifecycle state. Funds move exactly once, on
// the transition into StatusCompleted; StatusApproved is informational and
// moves nothing.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Request is a client's commitment to pay a freelancer for work, anchored to
// a conversation owned by the messaging collaborator.
type Request struct {
	ID             string
	ClientID       string
	FreelancerID   string
	ConversationID string
	Amount         int64
	Currency       string
	Description    string
	Status         Status
	DueDate        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
