package refund

import "time"

// Status is the refund request lifecycle state. Funds move only on the
// transition into StatusProcessed; every other terminal status leaves
// balances untouched.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusProcessed Status = "processed"
	StatusCancelled Status = "cancelled"
)

// Request is a client's demand to reverse part or all of a completed
// payment. At most one pending refund may exist per payment request.
type Request struct {
	ID               string
	PaymentRequestID string
	ClientID         string
	FreelancerID     string
	Amount           int64
	Reason           string
	Status           Status
	AdminNotes       string
	ProcessedByID    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
