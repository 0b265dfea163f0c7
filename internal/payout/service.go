package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/bank"
	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/wallet"
)

// ErrNotOwner indicates the caller does not own the wallet being drawn on.
var ErrNotOwner = errors.New("not owner of wallet")

// Service drives the payout state machine. Creation reserves funds
// immediately; the admin decision later finalizes or restores that
// reservation.
type Service struct {
	repo    Repository
	store   ledger.Store
	wallets *wallet.Service
	banks   bank.DetailsProvider
}

// NewService constructs a payout workflow service.
func NewService(repo Repository, store ledger.Store, wallets *wallet.Service, banks bank.DetailsProvider) *Service {
	return &Service{repo: repo, store: store, wallets: wallets, banks: banks}
}

// CreateInput captures the data needed to request a withdrawal.
type CreateInput struct {
	WalletID     string
	CallerID     string
	Amount       int64
	BankDetailID string
}

// Result describes the settlement outcome of a payout action.
type Result struct {
	Status       Status
	BalanceAfter int64
	EntryIDs     []string
}

// Create reserves the amount against the freelancer's wallet: the balance
// drops and a pending debit entry appears in the same atomic unit as the
// request row. The entry description names the destination bank by its last
// four account digits only.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, Result, error) {
	if input.Amount <= 0 {
		return Request{}, Result{}, fmt.Errorf("amount must be positive")
	}
	if input.BankDetailID == "" {
		return Request{}, Result{}, fmt.Errorf("bank detail is required")
	}

	w, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return Request{}, Result{}, err
	}
	if w.OwnerID != input.CallerID || w.OwnerType != wallet.OwnerFreelancer {
		return Request{}, Result{}, ErrNotOwner
	}

	details, err := s.banks.Lookup(ctx, input.BankDetailID)
	if err != nil {
		return Request{}, Result{}, err
	}
	description := fmt.Sprintf("payout to %s ****%s", details.BankName, details.AccountLast4)

	now := time.Now().UTC()
	req := Request{
		ID:           uuid.NewString(),
		WalletID:     w.ID,
		Amount:       input.Amount,
		BankDetailID: input.BankDetailID,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var res Result
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		balance, err := tx.Debit(w.ID, req.Amount)
		if err != nil {
			return err
		}
		entryID, err := tx.AppendEntry(ledger.Entry{
			WalletID:         w.ID,
			Amount:           req.Amount,
			Direction:        ledger.DirectionDebit,
			Status:           ledger.EntryStatusPending,
			Description:      description,
			RelatedRequestID: req.ID,
		})
		if err != nil {
			return err
		}
		if err := s.repo.CreateTx(tx, req); err != nil {
			return err
		}
		res = Result{Status: StatusPending, BalanceAfter: balance, EntryIDs: []string{entryID}}
		return nil
	})
	if err != nil {
		return Request{}, Result{}, err
	}
	return req, res, nil
}

// Get fetches a payout request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// ListPending returns payout requests awaiting an admin decision.
func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// UpdateStatus resolves a payout on behalf of an admin.
//
// approved marks the row only; the funds are already reserved. completed
// finalizes the reservation entry without touching the balance. rejected
// restores the balance, appends a credit entry documenting the restoration
// and marks the original reservation rejected, all in one atomic unit.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status, adminNotes string) (Result, error) {
	switch to {
	case StatusApproved:
		err := s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
			return s.repo.UpdateStatusTx(tx, id, []Status{StatusPending}, to, adminNotes)
		})
		return Result{Status: to}, err
	case StatusCompleted:
		return s.complete(ctx, id, adminNotes)
	case StatusRejected:
		return s.reject(ctx, id, adminNotes)
	default:
		return Result{}, fmt.Errorf("invalid target status %q", to)
	}
}

func (s *Service) complete(ctx context.Context, id, adminNotes string) (Result, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		if err := s.repo.UpdateStatusTx(tx, req.ID, []Status{StatusPending, StatusApproved}, StatusCompleted, adminNotes); err != nil {
			return err
		}
		reservation, err := tx.PendingDebitFor(req.ID)
		if err != nil {
			return err
		}
		if err := tx.FinalizeEntry(reservation.ID, ledger.EntryStatusCompleted); err != nil {
			return err
		}
		balance, err := tx.Balance(req.WalletID)
		if err != nil {
			return err
		}
		res = Result{Status: StatusCompleted, BalanceAfter: balance, EntryIDs: []string{reservation.ID}}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) reject(ctx context.Context, id, adminNotes string) (Result, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		if err := s.repo.UpdateStatusTx(tx, req.ID, []Status{StatusPending, StatusApproved}, StatusRejected, adminNotes); err != nil {
			return err
		}
		reservation, err := tx.PendingDebitFor(req.ID)
		if err != nil {
			return err
		}
		if err := tx.FinalizeEntry(reservation.ID, ledger.EntryStatusRejected); err != nil {
			return err
		}
		balance, err := tx.Credit(req.WalletID, req.Amount)
		if err != nil {
			return err
		}
		creditID, err := tx.AppendEntry(ledger.Entry{
			WalletID:         req.WalletID,
			Amount:           req.Amount,
			Direction:        ledger.DirectionCredit,
			Status:           ledger.EntryStatusCompleted,
			Description:      "payout rejected, reserved funds restored",
			RelatedRequestID: req.ID,
		})
		if err != nil {
			return err
		}
		res = Result{Status: StatusRejected, BalanceAfter: balance, EntryIDs: []string{reservation.ID, creditID}}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
