package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/payout"
)

// RegisterPayoutRoutes wires the freelancer-facing payout endpoint. Creation
// is rate limited per caller.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler, rateLimit fiber.Handler) {
	r.Post("/payouts", rateLimit, h.Create)
}
