package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/ledger"
)

func TestServiceEnsureCreatesLazily(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	ownerID := uuid.NewString()

	w, err := svc.Ensure(ctx, ownerID, OwnerFreelancer, "")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if w.OwnerID != ownerID || w.OwnerType != OwnerFreelancer {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if w.Currency != "USD" {
		t.Fatalf("expected default currency, got %s", w.Currency)
	}

	again, err := svc.Ensure(ctx, ownerID, OwnerFreelancer, "")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if again.ID != w.ID {
		t.Fatalf("ensure created a second wallet: %s vs %s", again.ID, w.ID)
	}

	// The same owner as a client gets a distinct wallet.
	client, err := svc.Ensure(ctx, ownerID, OwnerClient, "")
	if err != nil {
		t.Fatalf("ensure client wallet: %v", err)
	}
	if client.ID == w.ID {
		t.Fatal("client and freelancer wallets must be distinct")
	}
}

func TestServiceEnsureRejectsBadInput(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()

	if _, err := svc.Ensure(ctx, "", OwnerClient, ""); err == nil {
		t.Fatal("expected error for empty owner id")
	}
	if _, err := svc.Ensure(ctx, uuid.NewString(), OwnerType("vendor"), ""); err == nil {
		t.Fatal("expected error for unknown owner type")
	}
}

func TestServiceBalanceReadsLedger(t *testing.T) {
	repo := NewMemoryRepository()
	store := ledger.NewInMemory()
	svc := NewService(repo, store)

	ctx := context.Background()
	w, err := svc.Ensure(ctx, uuid.NewString(), OwnerClient, "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	bal, err := svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Amount != 0 {
		t.Fatalf("fresh wallet should read zero, got %d", bal.Amount)
	}

	ledger.SeedBalance(store, w.ID, 2_500)
	bal, err = svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", bal.Amount)
	}
}
