package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/ledger"
)

const (
	statusActive = "active"

	defaultCurrency = "USD"
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo  Repository
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(repo Repository, store ledger.Store) *Service {
	return &Service{repo: repo, store: store}
}

// Ensure returns the wallet for an owner, creating it lazily on first
// reference. Wallets start with a zero balance; funds only arrive through
// settlement.
func (s *Service) Ensure(ctx context.Context, ownerID string, ownerType OwnerType, currency string) (Wallet, error) {
	if ownerID == "" {
		return Wallet{}, fmt.Errorf("owner id is required")
	}
	if ownerType != OwnerClient && ownerType != OwnerFreelancer {
		return Wallet{}, fmt.Errorf("invalid owner type %q", ownerType)
	}

	w, err := s.repo.GetByOwner(ctx, ownerID, ownerType)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	if currency == "" {
		currency = defaultCurrency
	}
	w = Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		OwnerType: ownerType,
		Currency:  currency,
		Status:    statusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	// Another caller may have created the row concurrently; re-read so both
	// observe the same wallet.
	return s.repo.GetByOwner(ctx, ownerID, ownerType)
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the wallet held by an owner, without creating one.
func (s *Service) GetByOwner(ctx context.Context, ownerID string, ownerType OwnerType) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID, ownerType)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.store.Balance(ctx, w.ID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Entries lists the wallet's ledger entries, newest first.
func (s *Service) Entries(ctx context.Context, id string) ([]ledger.Entry, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.Entries(ctx, w.ID)
}
