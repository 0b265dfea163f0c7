package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/refund"
)

// RegisterRefundRoutes wires the client-facing refund endpoint.
func RegisterRefundRoutes(r fiber.Router, h *refund.Handler) {
	r.Post("/payments/:id/refunds", h.Create)
}
