package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lancepay/lancepay/internal/bank"
	"github.com/lancepay/lancepay/internal/config"
	"github.com/lancepay/lancepay/internal/ledger"
	"github.com/lancepay/lancepay/internal/messaging"
	"github.com/lancepay/lancepay/internal/middleware"
	"github.com/lancepay/lancepay/internal/payment"
	"github.com/lancepay/lancepay/internal/payout"
	"github.com/lancepay/lancepay/internal/refund"
	"github.com/lancepay/lancepay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. With no database
// handle the engine falls back to in-memory storage, which only development
// configuration allows.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var (
		store       ledger.Store
		walletRepo  wallet.Repository
		paymentRepo payment.Repository
		refundRepo  refund.Repository
		payoutRepo  payout.Repository
		banks       bank.DetailsProvider
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		paymentRepo = payment.NewPostgresRepository(d.DB)
		refundRepo = refund.NewPostgresRepository(d.DB)
		payoutRepo = payout.NewPostgresRepository(d.DB)
		banks = bank.NewPostgresProvider(d.DB)
	} else {
		store = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		paymentRepo = payment.NewMemoryRepository()
		refundRepo = refund.NewMemoryRepository()
		payoutRepo = payout.NewMemoryRepository()
		banks = bank.NewStaticProvider(bank.Details{ID: "dev-bank-1", BankName: "Dev Bank", AccountLast4: "00001111"})
	}

	walletSvc := wallet.NewService(walletRepo, store)
	poster := messaging.NewLoggerPoster(d.Logger)
	paymentSvc := payment.NewService(paymentRepo, store, walletSvc, poster)
	refundSvc := refund.NewService(refundRepo, paymentRepo, store, walletSvc, poster)
	payoutSvc := payout.NewService(payoutRepo, store, walletSvc, banks)

	walletHandler := wallet.NewHandler(walletSvc)
	paymentHandler := payment.NewHandler(paymentSvc)
	refundHandler := refund.NewHandler(refundSvc)
	payoutHandler := payout.NewHandler(payoutSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Every settlement endpoint requires the gateway-asserted identity.
	authed := api.Group("", middleware.TrustedIdentity())
	RegisterWalletRoutes(authed, walletHandler)
	RegisterPaymentRoutes(authed, paymentHandler)
	RegisterRefundRoutes(authed, refundHandler)
	RegisterPayoutRoutes(authed, payoutHandler, middleware.PayoutRateLimit(d.Cache, d.Cfg.PayoutRatePerMin))

	admin := authed.Group("/admin", middleware.RequireRole("admin"))
	RegisterAdminRoutes(admin, refundHandler, payoutHandler)

	return nil
}
