package bank

import (
	"context"
	"errors"
)

// ErrDetailNotFound indicates the referenced bank detail does not exist.
var ErrDetailNotFound = errors.New("bank detail not found")

// Details describes a payout destination. Only the last four digits of the
// account number ever leave this package.
type Details struct {
	ID           string
	BankName     string
	AccountLast4 string
}

// DetailsProvider resolves a bank detail reference for description
// formatting. The core does not validate bank details.
type DetailsProvider interface {
	Lookup(ctx context.Context, bankDetailID string) (Details, error)
}

// StaticProvider serves details from a fixed map, useful for tests and
// development without the bank-details collaborator.
type StaticProvider struct {
	details map[string]Details
}

// NewStaticProvider builds a provider over the supplied details. Account
// numbers are masked on the way in.
func NewStaticProvider(details ...Details) *StaticProvider {
	m := make(map[string]Details, len(details))
	for _, d := range details {
		d.AccountLast4 = MaskAccountNumber(d.AccountLast4)
		m[d.ID] = d
	}
	return &StaticProvider{details: m}
}

// Lookup returns the bank details for the identifier.
func (p *StaticProvider) Lookup(_ context.Context, bankDetailID string) (Details, error) {
	d, ok := p.details[bankDetailID]
	if !ok {
		return Details{}, ErrDetailNotFound
	}
	return d, nil
}

// MaskAccountNumber reduces an account number to its last four digits.
// Shorter values are returned unchanged since they reveal nothing more.
func MaskAccountNumber(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return accountNumber[len(accountNumber)-4:]
}
