package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/payout"
	"github.com/lancepay/lancepay/internal/refund"
)

// RegisterAdminRoutes wires the moderation endpoints: pending queues and
// refund/payout resolution.
func RegisterAdminRoutes(r fiber.Router, refunds *refund.Handler, payouts *payout.Handler) {
	r.Get("/refunds/pending", refunds.ListPending)
	r.Patch("/refunds/:id", refunds.UpdateStatus)
	r.Get("/payouts/pending", payouts.ListPending)
	r.Patch("/payouts/:id", payouts.UpdateStatus)
}
