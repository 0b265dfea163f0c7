package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	OwnerType string `json:"owner_type"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Balance   int64  `json:"balance"`
}

// Me returns the caller's wallet on the requested side of the marketplace,
// creating it lazily on first reference.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	ownerType := OwnerType(c.Query("type", string(OwnerFreelancer)))

	w, err := h.service.Ensure(c.UserContext(), uid, ownerType, c.Query("currency"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.Balance(c.UserContext(), w.ID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		ID:        w.ID,
		OwnerID:   w.OwnerID,
		OwnerType: string(w.OwnerType),
		Currency:  w.Currency,
		Status:    w.Status,
		Balance:   bal.Amount,
	})
}

// Balance returns the wallet balance. Only the owner or an admin may read it.
func (h *Handler) Balance(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	w, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if err := requireOwnerOrAdmin(c, w); err != nil {
		return err
	}
	bal, err := h.service.Balance(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": walletID,
		"balance":   bal.Amount,
		"timestamp": bal.AsOf,
	})
}

// Entries returns the wallet's ledger history, newest first.
func (h *Handler) Entries(c *fiber.Ctx) error {
	walletID := c.Params("walletId")
	w, err := h.service.Get(c.UserContext(), walletID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if err := requireOwnerOrAdmin(c, w); err != nil {
		return err
	}
	entries, err := h.service.Entries(c.UserContext(), walletID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"id":                 e.ID,
			"amount":             e.Amount,
			"direction":          e.Direction,
			"status":             e.Status,
			"description":        e.Description,
			"related_request_id": e.RelatedRequestID,
			"created_at":         e.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"wallet_id": walletID, "entries": out})
}

func requireOwnerOrAdmin(c *fiber.Ctx, w Wallet) error {
	uid, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("user_role").(string)
	if uid != w.OwnerID && role != "admin" {
		return fiber.NewError(http.StatusForbidden, "not owner of wallet")
	}
	return nil
}
