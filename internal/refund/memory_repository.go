package refund

import (
	"context"
	"sync"
	"time"

	"github.com/lancepay/lancepay/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Request
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]Request)}
}

// Create inserts the request, refusing a second open refund for the same
// payment under the same lock as the insert.
func (r *memoryRepository) Create(_ context.Context, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.storage {
		if existing.PaymentRequestID == req.PaymentRequestID && existing.Status == StatusPending {
			return ErrDuplicatePending
		}
	}
	r.storage[req.ID] = req
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.storage[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// UpdateStatusTx checks the precondition while the atomic unit holds the
// store lock and stages the write for commit time. Status writes only ever
// happen through atomic units, so nothing can invalidate the precondition
// before the staged write lands.
func (r *memoryRepository) UpdateStatusTx(tx ledger.Tx, id string, from []Status, to Status, adminNotes, processedByID string) error {
	r.mu.RLock()
	req, ok := r.storage[id]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if !statusIn(req.Status, from) {
		return ledger.ErrStateConflict
	}
	tx.OnCommit(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		req := r.storage[id]
		req.Status = to
		req.AdminNotes = adminNotes
		if processedByID != "" {
			req.ProcessedByID = processedByID
		}
		req.UpdatedAt = time.Now().UTC()
		r.storage[id] = req
	})
	return nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, status Status) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var requests []Request
	for _, req := range r.storage {
		if req.Status == status {
			requests = append(requests, req)
		}
	}
	return requests, nil
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
