package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds occurs when a debit would take a wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates the referenced wallet row does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrEntryNotFound indicates no ledger entry matched the lookup.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrStateConflict indicates a status precondition failed: the request
	// is no longer in a state that permits the attempted transition. Safe
	// to retry after the caller re-reads current state.
	ErrStateConflict = errors.New("request state conflict")
)

// Direction marks which side of a movement an entry records.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// EntryStatus tracks the settlement state of a single entry. Entries are
// append-only; status is the only mutable field and may only move
// pending -> completed or pending -> rejected.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusRejected  EntryStatus = "rejected"
)

// Entry is an immutable record of a single balance movement. Every balance
// mutation creates exactly one entry, and every entry carries the identifier
// of the request that triggered it so reservations can be located without
// matching on description text.
type Entry struct {
	ID               string
	WalletID         string
	Amount           int64
	Direction        Direction
	Status           EntryStatus
	Description      string
	RelatedRequestID string
	CreatedAt        time.Time
}

// Tx is the handle passed to RunAtomic callbacks. It is the only surface
// through which balances change; everything done through it commits or rolls
// back as one unit together with any request-status writes joined to the
// same transaction.
type Tx interface {
	// Balance reads the wallet balance, taking the row lock that serializes
	// concurrent writers. A missing wallet reads as zero.
	Balance(walletID string) (int64, error)
	// Credit increases the wallet balance and returns the new balance.
	Credit(walletID string, amount int64) (int64, error)
	// Debit decreases the wallet balance and returns the new balance. It
	// fails with ErrInsufficientFunds if the result would be negative.
	Debit(walletID string, amount int64) (int64, error)
	// AppendEntry records a ledger entry and returns its identifier.
	AppendEntry(e Entry) (string, error)
	// FinalizeEntry moves a pending entry to completed or rejected.
	FinalizeEntry(entryID string, status EntryStatus) error
	// PendingDebitFor locates the pending debit entry reserved for the given
	// request, typically to finalize or reject a payout reservation.
	PendingDebitFor(relatedRequestID string) (Entry, error)
	// OnCommit registers a side effect to run only after the unit commits.
	// Side effects never run on rollback.
	OnCommit(fn func())
}

// Store is the durable ledger: wallet balances plus their entry history.
// Only code running inside RunAtomic may mutate balances.
type Store interface {
	// Balance returns the committed balance; zero for an unknown wallet.
	Balance(ctx context.Context, walletID string) (int64, error)
	// Entries lists a wallet's entries, newest first.
	Entries(ctx context.Context, walletID string) ([]Entry, error)
	// EntriesForRequest lists the entries attributable to one request.
	EntriesForRequest(ctx context.Context, relatedRequestID string) ([]Entry, error)
	// RunAtomic executes fn inside a single database transaction. All writes
	// made through the Tx handle commit together or not at all.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
}

// TransferResult captures the outcome of a paired debit/credit.
type TransferResult struct {
	FromBalance int64
	ToBalance   int64
	EntryIDs    []string
}

// Transfer moves amount between two wallets inside the caller's atomic unit,
// appending a completed debit entry on the source and a completed credit
// entry on the destination. Both entries carry relatedRequestID.
func Transfer(tx Tx, fromWalletID, toWalletID string, amount int64, description, relatedRequestID string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, fmt.Errorf("amount must be positive")
	}

	fromBalance, err := tx.Debit(fromWalletID, amount)
	if err != nil {
		return TransferResult{}, err
	}
	toBalance, err := tx.Credit(toWalletID, amount)
	if err != nil {
		return TransferResult{}, err
	}

	debitID, err := tx.AppendEntry(Entry{
		WalletID:         fromWalletID,
		Amount:           amount,
		Direction:        DirectionDebit,
		Status:           EntryStatusCompleted,
		Description:      description,
		RelatedRequestID: relatedRequestID,
	})
	if err != nil {
		return TransferResult{}, err
	}
	creditID, err := tx.AppendEntry(Entry{
		WalletID:         toWalletID,
		Amount:           amount,
		Direction:        DirectionCredit,
		Status:           EntryStatusCompleted,
		Description:      description,
		RelatedRequestID: relatedRequestID,
	})
	if err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		FromBalance: fromBalance,
		ToBalance:   toBalance,
		EntryIDs:    []string{debitID, creditID},
	}, nil
}

// Reverse moves funds back from a wallet that previously received them. Same
// shape as Transfer with the roles swapped; it exists so reversal call sites
// read as reversals.
func Reverse(tx Tx, fromWalletID, toWalletID string, amount int64, description, relatedRequestID string) (TransferResult, error) {
	return Transfer(tx, fromWalletID, toWalletID, amount, description, relatedRequestID)
}
