package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	byOwner map[string]string
}

func ownerKey(ownerID string, ownerType OwnerType) string {
	return string(ownerType) + ":" + ownerID
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		byOwner: make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ownerKey(w.OwnerID, w.OwnerType)
	if _, exists := r.byOwner[key]; exists {
		return nil
	}
	r.storage[w.ID] = w
	r.byOwner[key] = w.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) GetByOwner(_ context.Context, ownerID string, ownerType OwnerType) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOwner[ownerKey(ownerID, ownerType)]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.storage[id], nil
}
