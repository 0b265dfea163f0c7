package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lancepay/lancepay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets/me", h.Me)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Get("/wallets/:walletId/entries", h.Entries)
}
