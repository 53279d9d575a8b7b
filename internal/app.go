// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "leadflow-wallet/internal/api"
	"leadflow-wallet/internal/api/handler"
	"leadflow-wallet/internal/config"
	"leadflow-wallet/internal/repository"
	"leadflow-wallet/internal/repository/postgres"
	"leadflow-wallet/internal/service"
	"leadflow-wallet/internal/util"
	"leadflow-wallet/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	AccountRepository     repository.AccountRepository
	TransactionRepository repository.TransactionRepository

	// Services
	LedgerService   service.LedgerService
	UsageService    service.UsageService
	MeteringService service.MeteringService
	BillingService  service.BillingService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "log_level", cfg.LogLevel)

	// 3. Connect to Database
	database, err := db.NewPostgresDB(ctx, cfg.DB, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, app.DB, app.Logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// 4. Initialize Repositories
	app.AccountRepository = postgres.NewAccountRepository(app.DB)
	app.TransactionRepository = postgres.NewTransactionRepository(app.DB)

	// 5. Initialize Services
	app.LedgerService = service.NewLedgerService(
		app.DB, // DBTxBeginner
		app.DB, // DBExecutor
		app.AccountRepository,
		app.TransactionRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.UsageService = service.NewUsageService(
		app.DB,
		app.DB,
		app.AccountRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		service.UsageOptions{
			Limits: cfg.Metering.Limits,
			Window: cfg.Metering.UsageWindow,
		},
		app.Logger,
	)
	app.MeteringService = service.NewMeteringService(
		app.DB,
		app.AccountRepository,
		app.LedgerService,
		app.UsageService,
		cfg.Metering.Prices,
		cfg.Metering.Limits,
		app.Logger,
	)
	app.BillingService = service.NewBillingService(
		app.DB,
		app.AccountRepository,
		app.LedgerService,
		service.BillingOptions{
			WebhookSecret: cfg.Stripe.WebhookSecret,
			PricePlans:    cfg.Stripe.PricePlans,
		},
		app.Logger,
	)
	if cfg.Stripe.WebhookSecret == "" {
		app.Logger.Warn("STRIPE_WEBHOOK_SECRET is not set, billing webhooks will be rejected")
	}
	app.Logger.Info("Services initialized.")

	// 6. Initialize HTTP Handlers and Router
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Account:  handler.NewAccountHandler(app.LedgerService, app.UsageService, app.MeteringService, app.BillingService, app.Logger),
		Metering: handler.NewMeteringHandler(app.MeteringService, app.UsageService, app.Logger),
		Billing:  handler.NewBillingHandler(app.BillingService, app.Logger),
	})
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	return nil
}
