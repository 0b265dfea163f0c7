package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/payment"
)

// RegisterPaymentRoutes wires payment request endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payment.Handler) {
	r.Post("/payments", h.Create)
	r.Get("/payments/:id", h.Get)
	r.Post("/payments/:id/approve", h.Approve)
	r.Post("/payments/:id/reject", h.Reject)
	r.Post("/payments/:id/release", h.Release)
	r.Get("/conversations/:conversationId/payments", h.ListByConversation)
}
