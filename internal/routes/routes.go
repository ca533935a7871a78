package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/airvend/airvend/internal/account"
	"github.com/airvend/airvend/internal/config"
	"github.com/airvend/airvend/internal/eligibility"
	"github.com/airvend/airvend/internal/ledger"
	"github.com/airvend/airvend/internal/middleware"
	"github.com/airvend/airvend/internal/network"
	"github.com/airvend/airvend/internal/notification"
	"github.com/airvend/airvend/internal/purchase"
	"github.com/airvend/airvend/internal/recorder"
	"github.com/airvend/airvend/internal/settlement"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Rules  config.Rules
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Engine
	classifier := network.NewClassifier(d.Rules.Network)
	calculator, err := settlement.NewCalculator(d.Rules.Settlement)
	if err != nil {
		return err
	}

	policy := ledger.PolicyFromRules(d.Rules.Allocation)
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, policy)
	} else {
		store = ledger.NewInMemory(policy)
	}
	gate := eligibility.NewGate(store, d.Rules.Eligibility)

	var accountRepo account.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
	}
	accountSvc := account.NewService(accountRepo, store)

	var rec recorder.Recorder
	if d.DB != nil {
		rec = recorder.NewPostgresRecorder(d.DB)
	} else {
		rec = recorder.NewLoggerRecorder(d.Logger)
	}
	notifier := notification.NewLoggerNotifier(d.Logger)

	purchaseSvc, err := purchase.NewService(context.Background(), classifier, calculator, store, gate, accountRepo, rec, notifier)
	if err != nil {
		return err
	}

	accountHandler := account.NewHandler(accountSvc)
	ledgerHandler := ledger.NewHandler(store)
	purchaseHandler := purchase.NewHandler(purchaseSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterNetworkRoutes(api, classifier)
	RegisterSettlementRoutes(api, calculator)
	RegisterAccountRoutes(api, accountHandler, ledgerHandler, gate)
	RegisterLedgerRoutes(api, ledgerHandler)
	RegisterPoolRoutes(api, ledgerHandler)

	rateLimiter := middleware.PurchaseRateLimit(d.Cache, 30)
	RegisterPurchaseRoutes(api, purchaseHandler, rateLimiter)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
