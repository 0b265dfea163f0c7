package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/messaging"
	"github.com/lancepay/lancepay/internal/wallet"
)

// ErrNotOwner indicates the caller does not own the payment request.
var ErrNotOwner = errors.New("not owner of payment request")

// Service drives the payment request state machine. Fund movement and the
// matching status flip always share one atomic unit.
type Service struct {
	repo    Repository
	store   ledger.Store
	wallets *wallet.Service
	poster  messaging.Poster
}

// NewService constructs a payment workflow service.
func NewService(repo Repository, store ledger.Store, wallets *wallet.Service, poster messaging.Poster) *Service {
	return &Service{repo: repo, store: store, wallets: wallets, poster: poster}
}

// CreateInput captures the data needed to open a payment request.
type CreateInput struct {
	ClientID       string
	FreelancerID   string
	ConversationID string
	Amount         int64
	Currency       string
	Description    string
	DueDate        *time.Time
}

// Result describes the settlement outcome of a workflow action.
type Result struct {
	Status       Status
	BalanceAfter int64
	EntryIDs     []string
}

// Create opens a pending payment request. No funds move.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if input.Amount <= 0 {
		return Request{}, fmt.Errorf("amount must be positive")
	}
	if input.ClientID == "" || input.FreelancerID == "" {
		return Request{}, fmt.Errorf("client and freelancer are required")
	}
	if input.ConversationID == "" {
		return Request{}, fmt.Errorf("conversation is required")
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}
	now := time.Now().UTC()
	req := Request{
		ID:             uuid.NewString(),
		ClientID:       input.ClientID,
		FreelancerID:   input.FreelancerID,
		ConversationID: input.ConversationID,
		Amount:         input.Amount,
		Currency:       currency,
		Description:    input.Description,
		Status:         StatusPending,
		DueDate:        input.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Get fetches a payment request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// ListByConversation returns the requests attached to a conversation.
func (s *Service) ListByConversation(ctx context.Context, conversationID string) ([]Request, error) {
	return s.repo.ListByConversation(ctx, conversationID)
}

// Approve marks a pending request approved. Informational only; funds move
// on Release. The transition runs through its own atomic unit so it
// serializes against a concurrent Release instead of racing its commit.
func (s *Service) Approve(ctx context.Context, id, clientID string) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.ClientID != clientID {
		return ErrNotOwner
	}
	return s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		return s.repo.UpdateStatusTx(tx, id, []Status{StatusPending}, StatusApproved)
	})
}

// Reject declines a pending request. No funds move; a system message lands
// in the conversation. Like Approve, the transition runs through an atomic
// unit of its own.
func (s *Service) Reject(ctx context.Context, id, clientID, reason string) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.ClientID != clientID {
		return ErrNotOwner
	}
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		return s.repo.UpdateStatusTx(tx, id, []Status{StatusPending}, StatusRejected)
	})
	if err != nil {
		return err
	}
	_ = s.post(ctx, req.ConversationID, fmt.Sprintf("payment request rejected: %s", reason))
	return nil
}

// Release settles the request: it transfers the amount from the client's
// wallet to the freelancer's and completes the request in one atomic unit.
// A repeated call finds the request already completed and fails with
// ledger.ErrStateConflict instead of moving funds again.
func (s *Service) Release(ctx context.Context, id, clientID string) (Result, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if req.ClientID != clientID {
		return Result{}, ErrNotOwner
	}

	clientWallet, err := s.wallets.Ensure(ctx, req.ClientID, wallet.OwnerClient, req.Currency)
	if err != nil {
		return Result{}, err
	}
	freelancerWallet, err := s.wallets.Ensure(ctx, req.FreelancerID, wallet.OwnerFreelancer, req.Currency)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		if err := s.repo.UpdateStatusTx(tx, req.ID, []Status{StatusPending, StatusApproved}, StatusCompleted); err != nil {
			return err
		}
		transfer, err := ledger.Transfer(tx, clientWallet.ID, freelancerWallet.ID, req.Amount,
			fmt.Sprintf("payment for: %s", req.Description), req.ID)
		if err != nil {
			return err
		}
		res = Result{Status: StatusCompleted, BalanceAfter: transfer.FromBalance, EntryIDs: transfer.EntryIDs}
		tx.OnCommit(func() {
			_ = s.post(ctx, req.ConversationID, fmt.Sprintf("payment completed: %s", req.Description))
		})
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (s *Service) post(ctx context.Context, conversationID, body string) error {
	if s.poster == nil {
		return nil
	}
	return s.poster.PostSystemMessage(ctx, conversationID, body)
}
