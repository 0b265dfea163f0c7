package payout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/bank"
	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/wallet"
)

func newTestService(t *testing.T) (*Service, ledger.Store, wallet.Wallet, string) {
	t.Helper()
	store := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	banks := bank.NewStaticProvider(bank.Details{ID: "bd-1", BankName: "First National", AccountLast4: "000012345678"})
	svc := NewService(NewMemoryRepository(), store, wallets, banks)

	ownerID := uuid.NewString()
	w, err := wallets.Ensure(context.Background(), ownerID, wallet.OwnerFreelancer, "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	return svc, store, w, ownerID
}

func TestCreateReservesFundsImmediately(t *testing.T) {
	svc, store, w, ownerID := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 100)

	req, res, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: ownerID, Amount: 40, BankDetailID: "bd-1"})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if res.Status != StatusPending || res.BalanceAfter != 60 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if bal, _ := store.Balance(ctx, w.ID); bal != 60 {
		t.Fatalf("reservation not applied: %d", bal)
	}

	entries, _ := store.EntriesForRequest(ctx, req.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one reservation entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Direction != ledger.DirectionDebit || e.Status != ledger.EntryStatusPending {
		t.Fatalf("unexpected reservation entry: %+v", e)
	}
	if !strings.Contains(e.Description, "****5678") {
		t.Fatalf("description must carry only the last four digits: %q", e.Description)
	}
	if strings.Contains(e.Description, "000012345678") {
		t.Fatalf("full account number leaked into description: %q", e.Description)
	}
}

func TestCreateRejectsOverdraw(t *testing.T) {
	svc, store, w, ownerID := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 30)

	if _, _, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: ownerID, Amount: 40, BankDetailID: "bd-1"}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if bal, _ := store.Balance(ctx, w.ID); bal != 30 {
		t.Fatalf("failed create changed balance: %d", bal)
	}
}

func TestCreateRequiresWalletOwnership(t *testing.T) {
	svc, store, w, _ := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 100)

	if _, _, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: uuid.NewString(), Amount: 40, BankDetailID: "bd-1"}); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
}

func TestRejectRestoresReservation(t *testing.T) {
	svc, store, w, ownerID := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 100)

	req, _, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: ownerID, Amount: 40, BankDetailID: "bd-1"})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}

	res, err := svc.UpdateStatus(ctx, req.ID, StatusRejected, "bank detail mismatch")
	if err != nil {
		t.Fatalf("reject payout: %v", err)
	}
	if res.BalanceAfter != 100 {
		t.Fatalf("expected restored balance 100, got %d", res.BalanceAfter)
	}
	if bal, _ := store.Balance(ctx, w.ID); bal != 100 {
		t.Fatalf("balance not restored: %d", bal)
	}

	entries, _ := store.EntriesForRequest(ctx, req.ID)
	if len(entries) != 2 {
		t.Fatalf("expected debit and credit entries, got %d", len(entries))
	}
	if entries[0].Direction != ledger.DirectionDebit || entries[0].Status != ledger.EntryStatusRejected {
		t.Fatalf("reservation entry not rejected: %+v", entries[0])
	}
	if entries[1].Direction != ledger.DirectionCredit || entries[1].Status != ledger.EntryStatusCompleted {
		t.Fatalf("restoration entry wrong: %+v", entries[1])
	}

	got, _ := svc.Get(ctx, req.ID)
	if got.Status != StatusRejected || got.AdminNotes != "bank detail mismatch" {
		t.Fatalf("unexpected payout state: %+v", got)
	}

	// A rejected payout cannot be completed or rejected again.
	if _, err := svc.UpdateStatus(ctx, req.ID, StatusCompleted, ""); !errors.Is(err, ledger.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCompleteFinalizesWithoutBalanceChange(t *testing.T) {
	svc, store, w, ownerID := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 100)

	req, _, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: ownerID, Amount: 40, BankDetailID: "bd-1"})
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, req.ID, StatusApproved, "ok to pay"); err != nil {
		t.Fatalf("approve payout: %v", err)
	}
	if bal, _ := store.Balance(ctx, w.ID); bal != 60 {
		t.Fatalf("approve changed balance: %d", bal)
	}

	res, err := svc.UpdateStatus(ctx, req.ID, StatusCompleted, "wire sent")
	if err != nil {
		t.Fatalf("complete payout: %v", err)
	}
	if res.BalanceAfter != 60 {
		t.Fatalf("completion must not change balance, got %d", res.BalanceAfter)
	}

	entries, _ := store.EntriesForRequest(ctx, req.ID)
	if len(entries) != 1 || entries[0].Status != ledger.EntryStatusCompleted {
		t.Fatalf("reservation not finalized: %+v", entries)
	}
}

func TestConcurrentPayoutsCannotOverdraw(t *testing.T) {
	svc, store, w, ownerID := newTestService(t)
	ctx := context.Background()
	ledger.SeedBalance(store, w.ID, 100)

	// Two racing 60-unit payouts against a 100 balance: exactly one wins.
	const callers = 2
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Create(ctx, CreateInput{WalletID: w.ID, CallerID: ownerID, Amount: 60, BankDetailID: "bd-1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected one success and one refusal, got %d/%d", succeeded, insufficient)
	}
	if bal, _ := store.Balance(ctx, w.ID); bal != 40 {
		t.Fatalf("unexpected balance after race: %d", bal)
	}
}
