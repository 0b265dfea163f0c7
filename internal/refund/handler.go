package refund

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/payment"
)

// Handler exposes refund request endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a refund handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type updateRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// Create opens a refund against the payment request in the path.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	created, err := h.service.Create(c.UserContext(), CreateInput{
		PaymentRequestID: c.Params("id"),
		ClientID:         uid,
		Amount:           req.Amount,
		Reason:           req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "payment request not found")
		case errors.Is(err, ErrNotOwner):
			return fiber.NewError(http.StatusForbidden, "not owner of payment request")
		case errors.Is(err, ErrDuplicatePending):
			return fiber.NewError(http.StatusConflict, "a pending refund already exists")
		case errors.Is(err, ledger.ErrStateConflict):
			return fiber.NewError(http.StatusConflict, "payment is not refundable in its current state")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// UpdateStatus resolves a refund on behalf of an admin.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	adminID, _ := c.Locals("user_id").(string)

	res, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), Status(req.Status), req.AdminNotes, adminID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "refund request not found")
		case errors.Is(err, ledger.ErrStateConflict):
			return fiber.NewError(http.StatusConflict, "refund request state conflict")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "freelancer balance cannot cover the refund")
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

// ListPending returns refunds awaiting an admin decision.
func (h *Handler) ListPending(c *fiber.Ctx) error {
	requests, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(requests))
	for _, req := range requests {
		out = append(out, toResponse(req))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"pending_refunds": out})
}

func toResponse(req Request) fiber.Map {
	return fiber.Map{
		"id":                 req.ID,
		"payment_request_id": req.PaymentRequestID,
		"client_id":          req.ClientID,
		"freelancer_id":      req.FreelancerID,
		"amount":             req.Amount,
		"reason":             req.Reason,
		"status":             req.Status,
		"admin_notes":        req.AdminNotes,
		"processed_by_id":    req.ProcessedByID,
		"created_at":         req.CreatedAt,
	}
}
