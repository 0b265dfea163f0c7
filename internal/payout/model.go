package payout

import "time"

// Status is the payout request lifecycle state. Unlike payments and refunds,
// funds leave the available balance at request time: creation reserves the
// amount, completion finalizes the reservation, rejection restores it.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Request is a freelancer's withdrawal of wallet funds to an external bank
// account supplied by the bank-details collaborator.
type Request struct {
	ID           string
	WalletID     string
	Amount       int64
	BankDetailID string
	Status       Status
	AdminNotes   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
