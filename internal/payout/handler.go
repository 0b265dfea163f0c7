package payout

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/bank"
	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/wallet"
)

// Handler exposes payout request endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payout handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	WalletID     string `json:"wallet_id"`
	Amount       int64  `json:"amount"`
	BankDetailID string `json:"bank_detail_id"`
}

type updateRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// Create reserves a withdrawal against the caller's wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	created, res, err := h.service.Create(c.UserContext(), CreateInput{
		WalletID:     req.WalletID,
		CallerID:     uid,
		Amount:       req.Amount,
		BankDetailID: req.BankDetailID,
	})
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, "not owner of wallet")
		case errors.Is(err, bank.ErrDetailNotFound):
			return fiber.NewError(http.StatusNotFound, "bank detail not found")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":            created.ID,
		"status":        res.Status,
		"balance_after": res.BalanceAfter,
		"entry_ids":     res.EntryIDs,
	})
}

// UpdateStatus resolves a payout on behalf of an admin.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), Status(req.Status), req.AdminNotes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "payout request not found")
		case errors.Is(err, ledger.ErrStateConflict):
			return fiber.NewError(http.StatusConflict, "payout request state conflict")
		case errors.Is(err, ledger.ErrEntryNotFound):
			return fiber.NewError(http.StatusConflict, "reservation entry already finalized")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":        res.Status,
		"balance_after": res.BalanceAfter,
		"entry_ids":     res.EntryIDs,
	})
}

// ListPending returns payout requests awaiting an admin decision.
func (h *Handler) ListPending(c *fiber.Ctx) error {
	requests, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(requests))
	for _, req := range requests {
		out = append(out, fiber.Map{
			"id":             req.ID,
			"wallet_id":      req.WalletID,
			"amount":         req.Amount,
			"bank_detail_id": req.BankDetailID,
			"status":         req.Status,
			"admin_notes":    req.AdminNotes,
			"created_at":     req.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"pending_payouts": out})
}
