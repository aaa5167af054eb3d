// internal/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	router "balance-ledger/internal/api"
	"balance-ledger/internal/api/handler"
	"balance-ledger/internal/artifact"
	"balance-ledger/internal/config"
	"balance-ledger/internal/jobs"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/repository/filestore"
	"balance-ledger/internal/repository/postgres"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
	"balance-ledger/pkg/db"
	"balance-ledger/pkg/lock"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *logrus.Logger
	DB     *sqlx.DB              // nil with the file storage driver
	Redis  redis.UniversalClient // nil with the local lock driver

	// Repositories
	BalanceRepository repository.BalanceRepository
	RequestRepository repository.RequestRepository
	Artifacts         *artifact.FSStore
	Locker            lock.Locker

	// Services
	LedgerService  service.LedgerService
	RequestService service.RequestService

	Scheduler *jobs.Scheduler

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize loads configuration and builds every component.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig builds every component from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Storage
	if err := app.initStorage(ctx); err != nil {
		return err
	}

	artifacts, err := artifact.NewFSStore(cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize upload store: %w", err)
	}
	app.Artifacts = artifacts

	// 4. Locking
	if err := app.initLocker(ctx); err != nil {
		return err
	}

	// 5. Initialize Services
	app.LedgerService = service.NewLedgerService(
		app.BalanceRepository,
		app.Locker,
		service.LedgerConfig{Currency: cfg.Currency, BonusAmount: cfg.BonusAmount},
		app.Logger,
	)
	app.RequestService = service.NewRequestService(
		app.RequestRepository,
		app.Artifacts,
		app.Locker,
		service.NewValidator(),
		service.RequestConfig{
			CashoutAmounts:  cfg.CashoutAmounts,
			WithdrawAmounts: cfg.WithdrawAmounts,
			MaxUploadBytes:  cfg.Storage.UploadMaxBytes,
		},
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 6. Background jobs
	if cfg.SweepSchedule != "" {
		sweeper := jobs.NewSweeper(app.Artifacts, app.RequestRepository, jobs.DefaultOrphanAge, app.Logger)
		app.Scheduler = jobs.NewScheduler(cfg.SweepSchedule, sweeper, app.Logger)
		if err := app.Scheduler.Start(ctx); err != nil {
			return err
		}
	}

	// 7. Initialize HTTP Handlers and Router
	if cfg.AdminKeyHash == "" {
		app.Logger.Warn("ADMIN_KEY_HASH is not set; admin routes will reject every request")
	}
	balanceHandler := handler.NewBalanceHandler(app.LedgerService, cfg.Currency, app.Logger)
	requestHandler := handler.NewRequestHandler(app.RequestService, cfg.Storage.UploadMaxBytes, app.Logger)
	app.HTTPHandler = router.NewRouter(balanceHandler, requestHandler, router.RouterConfig{
		AdminKeyHash: cfg.AdminKeyHash,
		UploadDir:    cfg.Storage.UploadDir,
	}, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStorage(ctx context.Context) error {
	cfg := app.Config
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		database, err := db.NewPostgresDB(ctx, cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		app.DB = database
		if err := postgres.Migrate(ctx, database); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		app.BalanceRepository = postgres.NewBalanceRepository(database)
		app.RequestRepository = postgres.NewRequestRepository(database)
		app.Logger.Info("PostgreSQL storage initialized.")
	default:
		balances, err := filestore.NewBalanceRepository(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open balance store: %w", err)
		}
		requests, err := filestore.NewRequestRepository(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open request store: %w", err)
		}
		app.BalanceRepository = balances
		app.RequestRepository = requests
		app.Logger.WithField("data_dir", cfg.Storage.DataDir).Info("File storage initialized.")
	}
	return nil
}

func (app *Application) initLocker(ctx context.Context) error {
	cfg := app.Config
	if cfg.Lock.Driver != config.LockRedis {
		app.Locker = lock.NewKeyedMutex()
		return nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Lock.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	app.Redis = client
	app.Locker = lock.NewRedisLocker(client, "ledger:lock:", cfg.Lock.TTL, app.Logger)
	app.Logger.WithField("addr", cfg.Lock.Redis.Addr).Info("Redis lock initialized.")
	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	var firstErr error
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.WithError(err).Error("Failed to close Redis connection")
			firstErr = fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.WithError(err).Error("Failed to close database connection")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close database connection: %w", err)
			}
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if firstErr == nil {
		app.Logger.Info("Application shut down gracefully.")
	}
	return firstErr
}
