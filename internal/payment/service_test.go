package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/wallet"
)

type recordingPoster struct {
	mu       sync.Mutex
	messages []string
}

func (p *recordingPoster) PostSystemMessage(_ context.Context, conversationID, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, conversationID+": "+body)
	return nil
}

func (p *recordingPoster) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.messages...)
}

func newTestService(t *testing.T) (*Service, ledger.Store, *wallet.Service, *recordingPoster) {
	t.Helper()
	store := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), store)
	poster := &recordingPoster{}
	svc := NewService(NewMemoryRepository(), store, wallets, poster)
	return svc, store, wallets, poster
}

func createFunded(t *testing.T, svc *Service, store ledger.Store, wallets *wallet.Service, clientID, freelancerID string, amount, clientBalance int64) Request {
	t.Helper()
	ctx := context.Background()
	req, err := svc.Create(ctx, CreateInput{
		ClientID:       clientID,
		FreelancerID:   freelancerID,
		ConversationID: "conv-1",
		Amount:         amount,
		Description:    "logo design milestone",
	})
	if err != nil {
		t.Fatalf("create payment request: %v", err)
	}
	clientWallet, err := wallets.Ensure(ctx, clientID, wallet.OwnerClient, "USD")
	if err != nil {
		t.Fatalf("ensure client wallet: %v", err)
	}
	ledger.SeedBalance(store, clientWallet.ID, clientBalance)
	return req
}

func TestReleaseMovesFundsOnce(t *testing.T) {
	svc, store, wallets, poster := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 500)

	res, err := svc.Release(ctx, req.ID, clientID)
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.BalanceAfter != 300 {
		t.Fatalf("expected client balance 300, got %d", res.BalanceAfter)
	}
	if len(res.EntryIDs) != 2 {
		t.Fatalf("expected debit+credit pair, got %d", len(res.EntryIDs))
	}

	clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
	freelancerWallet, _ := wallets.GetByOwner(ctx, freelancerID, wallet.OwnerFreelancer)
	clientBal, _ := store.Balance(ctx, clientWallet.ID)
	freelancerBal, _ := store.Balance(ctx, freelancerWallet.ID)
	if clientBal != 300 || freelancerBal != 200 {
		t.Fatalf("unexpected balances: client=%d freelancer=%d", clientBal, freelancerBal)
	}

	got, _ := svc.Get(ctx, req.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("request status not completed: %s", got.Status)
	}

	messages := poster.all()
	if len(messages) != 1 || !strings.Contains(messages[0], "payment completed") {
		t.Fatalf("expected one completion message, got %v", messages)
	}

	// Second release must conflict, not transfer again.
	if _, err := svc.Release(ctx, req.ID, clientID); !errors.Is(err, ledger.ErrStateConflict) {
		t.Fatalf("expected state conflict on repeated release, got %v", err)
	}
	clientBal, _ = store.Balance(ctx, clientWallet.ID)
	if clientBal != 300 {
		t.Fatalf("repeated release moved funds: %d", clientBal)
	}
}

func TestReleaseInsufficientFundsLeavesStateUntouched(t *testing.T) {
	svc, store, wallets, poster := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 1_000, 100)

	if _, err := svc.Release(ctx, req.ID, clientID); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	got, _ := svc.Get(ctx, req.ID)
	if got.Status != StatusPending {
		t.Fatalf("failed release should leave request pending, got %s", got.Status)
	}
	clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
	if bal, _ := store.Balance(ctx, clientWallet.ID); bal != 100 {
		t.Fatalf("failed release changed balance: %d", bal)
	}
	if len(poster.all()) != 0 {
		t.Fatal("no message should be posted for a failed release")
	}
}

func TestReleaseRequiresOwnership(t *testing.T) {
	svc, store, wallets, _ := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 500)

	if _, err := svc.Release(ctx, req.ID, uuid.NewString()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
}

func TestRejectPostsMessageAndMovesNoFunds(t *testing.T) {
	svc, store, wallets, poster := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 500)

	if err := svc.Reject(ctx, req.ID, clientID, "scope changed"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	got, _ := svc.Get(ctx, req.ID)
	if got.Status != StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
	if bal, _ := store.Balance(ctx, clientWallet.ID); bal != 500 {
		t.Fatalf("reject moved funds: %d", bal)
	}
	messages := poster.all()
	if len(messages) != 1 || !strings.Contains(messages[0], "payment request rejected: scope changed") {
		t.Fatalf("unexpected messages: %v", messages)
	}

	// A rejected request cannot be released afterwards.
	if _, err := svc.Release(ctx, req.ID, clientID); !errors.Is(err, ledger.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestReleaseFromApprovedState(t *testing.T) {
	svc, store, wallets, _ := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 500)

	if err := svc.Approve(ctx, req.ID, clientID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
	if bal, _ := store.Balance(ctx, clientWallet.ID); bal != 500 {
		t.Fatalf("approve moved funds: %d", bal)
	}

	if _, err := svc.Release(ctx, req.ID, clientID); err != nil {
		t.Fatalf("release after approve failed: %v", err)
	}
}

func TestConcurrentReleaseSettlesExactlyOnce(t *testing.T) {
	svc, store, wallets, _ := newTestService(t)
	ctx := context.Background()
	clientID, freelancerID := uuid.NewString(), uuid.NewString()
	req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 1_000)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Release(ctx, req.ID, clientID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrStateConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != callers-1 {
		t.Fatalf("expected exactly one settlement, got %d successes and %d conflicts", succeeded, conflicted)
	}

	clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
	if bal, _ := store.Balance(ctx, clientWallet.ID); bal != 800 {
		t.Fatalf("funds moved more than once: %d", bal)
	}
}

func TestConcurrentReleaseAndRejectStayConsistent(t *testing.T) {
	ctx := context.Background()

	// A reject landing while a release settles must never leave the request
	// rejected with the transfer committed. Whichever transition wins, the
	// final status and the balances have to agree.
	for i := 0; i < 25; i++ {
		svc, store, wallets, _ := newTestService(t)
		clientID, freelancerID := uuid.NewString(), uuid.NewString()
		req := createFunded(t, svc, store, wallets, clientID, freelancerID, 200, 500)

		var wg sync.WaitGroup
		var releaseErr, rejectErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, releaseErr = svc.Release(ctx, req.ID, clientID)
		}()
		go func() {
			defer wg.Done()
			rejectErr = svc.Reject(ctx, req.ID, clientID, "changed my mind")
		}()
		wg.Wait()

		if (releaseErr == nil) == (rejectErr == nil) {
			t.Fatalf("exactly one transition must win: release=%v reject=%v", releaseErr, rejectErr)
		}
		loser := releaseErr
		if releaseErr == nil {
			loser = rejectErr
		}
		if !errors.Is(loser, ledger.ErrStateConflict) {
			t.Fatalf("loser must see a state conflict, got %v", loser)
		}

		got, err := svc.Get(ctx, req.ID)
		if err != nil {
			t.Fatalf("get request: %v", err)
		}
		clientWallet, _ := wallets.GetByOwner(ctx, clientID, wallet.OwnerClient)
		bal, _ := store.Balance(ctx, clientWallet.ID)
		entries, _ := store.EntriesForRequest(ctx, req.ID)
		switch got.Status {
		case StatusCompleted:
			if bal != 300 || len(entries) != 2 {
				t.Fatalf("completed request must have moved funds exactly once: balance=%d entries=%d", bal, len(entries))
			}
		case StatusRejected:
			if bal != 500 || len(entries) != 0 {
				t.Fatalf("rejected request must move no funds: balance=%d entries=%d", bal, len(entries))
			}
		default:
			t.Fatalf("unexpected final status %s", got.Status)
		}
	}
}
