package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  []Entry
	byID     map[string]int
}

// NewInMemory creates a concurrency-safe in-memory ledger store useful for
// unit tests. RunAtomic stages writes and applies them only when the
// callback succeeds, mirroring the rollback behaviour of the Postgres store.
func NewInMemory() Store {
	return &inMemoryStore{
		balances: make(map[string]int64),
		byID:     make(map[string]int),
	}
}

type memTx struct {
	store     *inMemoryStore
	balances  map[string]int64
	appended  []Entry
	finalized map[string]EntryStatus
	hooks     []func()
}

// RunAtomic holds the store lock for the whole unit, so concurrent callers
// observe fully-committed state only.
func (s *inMemoryStore) RunAtomic(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:     s,
		balances:  make(map[string]int64),
		finalized: make(map[string]EntryStatus),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for walletID, balance := range tx.balances {
		s.balances[walletID] = balance
	}
	for _, e := range tx.appended {
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	for entryID, status := range tx.finalized {
		s.entries[s.byID[entryID]].Status = status
	}

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

func (t *memTx) current(walletID string) int64 {
	if balance, ok := t.balances[walletID]; ok {
		return balance
	}
	return t.store.balances[walletID]
}

func (t *memTx) Balance(walletID string) (int64, error) {
	return t.current(walletID), nil
}

func (t *memTx) Credit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	balance := t.current(walletID) + amount
	t.balances[walletID] = balance
	return balance, nil
}

func (t *memTx) Debit(walletID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	balance := t.current(walletID)
	if balance < amount {
		return 0, ErrInsufficientFunds
	}
	balance -= amount
	t.balances[walletID] = balance
	return balance, nil
}

func (t *memTx) AppendEntry(e Entry) (string, error) {
	if e.Amount <= 0 {
		return "", fmt.Errorf("entry amount must be positive")
	}
	if e.Direction != DirectionCredit && e.Direction != DirectionDebit {
		return "", fmt.Errorf("invalid entry direction %q", e.Direction)
	}
	if e.Status == "" {
		e.Status = EntryStatusPending
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	t.appended = append(t.appended, e)
	return e.ID, nil
}

func (t *memTx) FinalizeEntry(entryID string, status EntryStatus) error {
	if status != EntryStatusCompleted && status != EntryStatusRejected {
		return fmt.Errorf("invalid terminal entry status %q", status)
	}
	if _, done := t.finalized[entryID]; done {
		return ErrEntryNotFound
	}
	for i := range t.appended {
		if t.appended[i].ID == entryID {
			if t.appended[i].Status != EntryStatusPending {
				return ErrEntryNotFound
			}
			t.appended[i].Status = status
			return nil
		}
	}
	idx, ok := t.store.byID[entryID]
	if !ok || t.store.entries[idx].Status != EntryStatusPending {
		return ErrEntryNotFound
	}
	t.finalized[entryID] = status
	return nil
}

func (t *memTx) PendingDebitFor(relatedRequestID string) (Entry, error) {
	for _, e := range t.appended {
		if e.RelatedRequestID == relatedRequestID && e.Direction == DirectionDebit && e.Status == EntryStatusPending {
			return e, nil
		}
	}
	for _, e := range t.store.entries {
		if e.RelatedRequestID != relatedRequestID || e.Direction != DirectionDebit || e.Status != EntryStatusPending {
			continue
		}
		if _, done := t.finalized[e.ID]; done {
			continue
		}
		return e, nil
	}
	return Entry{}, ErrEntryNotFound
}

func (t *memTx) OnCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[walletID], nil
}

func (s *inMemoryStore) Entries(_ context.Context, walletID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].WalletID == walletID {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}

func (s *inMemoryStore) EntriesForRequest(_ context.Context, relatedRequestID string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []Entry
	for _, e := range s.entries {
		if e.RelatedRequestID == relatedRequestID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
