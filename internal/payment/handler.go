package payment

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/ledger"
)

// Handler exposes payment request endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	FreelancerID   string `json:"freelancer_id"`
	ConversationID string `json:"conversation_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Description    string `json:"description"`
	DueDate        string `json:"due_date"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Create opens a payment request owned by the calling client.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)

	input := CreateInput{
		ClientID:       uid,
		FreelancerID:   req.FreelancerID,
		ConversationID: req.ConversationID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
	}
	if req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "due_date must be RFC3339")
		}
		input.DueDate = &due
	}

	created, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(created))
}

// Get returns a payment request.
func (h *Handler) Get(c *fiber.Ctx) error {
	req, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "payment request not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(req))
}

// ListByConversation returns every payment request in one conversation.
func (h *Handler) ListByConversation(c *fiber.Ctx) error {
	reqs, err := h.service.ListByConversation(c.UserContext(), c.Params("conversationId"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, toResponse(r))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Approve marks the request approved without moving funds.
func (h *Handler) Approve(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.Approve(c.UserContext(), c.Params("id"), uid); err != nil {
		return mapWorkflowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": StatusApproved})
}

// Reject declines the request.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req rejectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	uid, _ := c.Locals("user_id").(string)
	if err := h.service.Reject(c.UserContext(), c.Params("id"), uid, req.Reason); err != nil {
		return mapWorkflowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": StatusRejected})
}

// Release settles the request into the freelancer's wallet.
func (h *Handler) Release(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	res, err := h.service.Release(c.UserContext(), c.Params("id"), uid)
	if err != nil {
		return mapWorkflowError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":        res.Status,
		"balance_after": res.BalanceAfter,
		"entry_ids":     res.EntryIDs,
	})
}

func mapWorkflowError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "payment request not found")
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, "not owner of payment request")
	case errors.Is(err, ledger.ErrStateConflict):
		return fiber.NewError(http.StatusConflict, "payment request state conflict")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func toResponse(req Request) fiber.Map {
	return fiber.Map{
		"id":              req.ID,
		"client_id":       req.ClientID,
		"freelancer_id":   req.FreelancerID,
		"conversation_id": req.ConversationID,
		"amount":          req.Amount,
		"currency":        req.Currency,
		"description":     req.Description,
		"status":          req.Status,
		"due_date":        req.DueDate,
		"created_at":      req.CreatedAt,
		"updated_at":      req.UpdatedAt,
	}
}
