package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/messaging"
	"github.com/lancepay/lancepay/internal/payment"
	"github.com/lancepay/lancepay/internal/wallet"
)

var (
	// ErrNotOwner indicates the caller does not own the originating payment.
	ErrNotOwner = errors.New("not owner of payment request")

	// ErrDuplicatePending indicates an open refund already exists for the
	// payment request.
	ErrDuplicatePending = errors.New("a pending refund already exists for this payment")
)

// Service drives the refund request state machine. Processing a refund
// reverses funds freelancer to client and flips the originating payment to
// refunded, all in one atomic unit.
type Service struct {
	repo     Repository
	payments payment.Repository
	store    ledger.Store
	wallets  *wallet.Service
	poster   messaging.Poster
}

// NewService constructs a refund workflow service.
func NewService(repo Repository, payments payment.Repository, store ledger.Store, wallets *wallet.Service, poster messaging.Poster) *Service {
	return &Service{repo: repo, payments: payments, store: store, wallets: wallets, poster: poster}
}

// CreateInput captures the data needed to open a refund request.
type CreateInput struct {
	PaymentRequestID string
	ClientID         string
	Amount           int64
	Reason           string
}

// Result describes the settlement outcome of processing a refund.
type Result struct {
	Status       Status
	BalanceAfter int64
	EntryIDs     []string
}

// Create opens a pending refund against a completed payment. The amount may
// not exceed the original payment and only one refund may be open per
// payment at a time.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if input.Amount <= 0 {
		return Request{}, fmt.Errorf("amount must be positive")
	}

	paymentReq, err := s.payments.Get(ctx, input.PaymentRequestID)
	if err != nil {
		return Request{}, err
	}
	if paymentReq.ClientID != input.ClientID {
		return Request{}, ErrNotOwner
	}
	if paymentReq.Status != payment.StatusCompleted {
		return Request{}, ledger.ErrStateConflict
	}
	if input.Amount > paymentReq.Amount {
		return Request{}, fmt.Errorf("refund amount exceeds payment amount")
	}

	now := time.Now().UTC()
	req := Request{
		ID:               uuid.NewString(),
		PaymentRequestID: paymentReq.ID,
		ClientID:         paymentReq.ClientID,
		FreelancerID:     paymentReq.FreelancerID,
		Amount:           input.Amount,
		Reason:           input.Reason,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Get fetches a refund request.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// ListPending returns the refunds awaiting an admin decision.
func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// UpdateStatus resolves a refund. Statuses other than processed only update
// the row. Processing reverses the funds: the freelancer's wallet is debited
// and the client's credited, the originating payment flips to refunded, and
// the refund becomes processed, with all of it committing or rolling back
// together. An insufficient freelancer balance aborts the whole unit, so the
// refund keeps the status it had before the attempt.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status, adminNotes, processedByID string) (Result, error) {
	switch to {
	case StatusApproved:
		err := s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
			return s.repo.UpdateStatusTx(tx, id, []Status{StatusPending}, to, adminNotes, processedByID)
		})
		return Result{Status: to}, err
	case StatusRejected, StatusCancelled:
		err := s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
			return s.repo.UpdateStatusTx(tx, id, []Status{StatusPending, StatusApproved}, to, adminNotes, processedByID)
		})
		return Result{Status: to}, err
	case StatusProcessed:
		return s.process(ctx, id, adminNotes, processedByID)
	default:
		return Result{}, fmt.Errorf("invalid target status %q", to)
	}
}

func (s *Service) process(ctx context.Context, id, adminNotes, processedByID string) (Result, error) {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	paymentReq, err := s.payments.Get(ctx, req.PaymentRequestID)
	if err != nil {
		return Result{}, err
	}

	clientWallet, err := s.wallets.Ensure(ctx, req.ClientID, wallet.OwnerClient, paymentReq.Currency)
	if err != nil {
		return Result{}, err
	}
	freelancerWallet, err := s.wallets.Ensure(ctx, req.FreelancerID, wallet.OwnerFreelancer, paymentReq.Currency)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.RunAtomic(ctx, func(tx ledger.Tx) error {
		if err := s.repo.UpdateStatusTx(tx, req.ID, []Status{StatusPending, StatusApproved}, StatusProcessed, adminNotes, processedByID); err != nil {
			return err
		}
		if err := s.payments.UpdateStatusTx(tx, paymentReq.ID, []payment.Status{payment.StatusCompleted}, payment.StatusRefunded); err != nil {
			return err
		}
		reversal, err := ledger.Reverse(tx, freelancerWallet.ID, clientWallet.ID, req.Amount,
			fmt.Sprintf("refund for: %s", paymentReq.Description), req.ID)
		if err != nil {
			return err
		}
		res = Result{Status: StatusProcessed, BalanceAfter: reversal.ToBalance, EntryIDs: reversal.EntryIDs}
		tx.OnCommit(func() {
			_ = s.post(ctx, paymentReq.ConversationID, fmt.Sprintf("refund processed: %s", req.Reason))
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
