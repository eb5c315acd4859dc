// Package app wires the configured storage driver, payment processor and
// collaborators into the rental and damage services. Both binaries build on
// it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"carrental-backend/internal/cache"
	"carrental-backend/internal/config"
	"carrental-backend/internal/events"
	"carrental-backend/internal/gateway"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/notification"
	"carrental-backend/internal/pricing"
	"carrental-backend/internal/repository"
	"carrental-backend/internal/repository/memory"
	"carrental-backend/internal/repository/postgres"
	"carrental-backend/internal/security"
	"carrental-backend/internal/service"

	"github.com/redis/go-redis/v9"
)

// App holds everything a binary needs after startup.
type App struct {
	Config *config.Config

	Tx        repository.TxManager
	Rentals   repository.RentalRepository
	Payments  repository.PaymentRepository
	Damages   repository.DamageReportRepository
	Vehicles  repository.VehicleRegistry
	Customers repository.CustomerDirectory

	RentalService service.RentalService
	DamageService service.DamageService
	Notifier      *notification.Notifier
	Tokens        security.TokenManager

	// Checks are the dependency probes served by the gRPC health service.
	Checks map[string]func(ctx context.Context) error

	closers []func() error
}

// Build connects to the configured backends. Call Close when done, even if
// Build returned an error.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Tokens: security.NewTokenManager(cfg.JWT.Secret, cfg.AccessTokenTTL()),
		Checks: make(map[string]func(ctx context.Context) error),
	}

	if err := a.openStore(ctx); err != nil {
		return a, err
	}
	if err := a.openCache(ctx); err != nil {
		return a, err
	}

	gw, err := a.paymentGateway()
	if err != nil {
		return a, err
	}
	processor := service.NewPaymentProcessor(gw, cfg.PaymentTimeout())

	publisher, err := a.publisher()
	if err != nil {
		return a, err
	}

	now := service.Clock(time.Now)
	quoter := pricing.NewRateCardEngine(a.Vehicles, cfg.Pricing.Tiers, cfg.Pricing.DefaultCurrency)

	a.RentalService = service.NewRentalService(a.Tx, a.Rentals, a.Payments, a.Vehicles, a.Customers,
		quoter, processor, publisher, now)
	a.DamageService = service.NewDamageService(a.Tx, a.Damages, a.Rentals, a.Payments, a.Vehicles, a.Customers,
		processor, publisher, cfg.Damage, cfg.Pricing.DefaultCurrency, now)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		if cfg.Database.SeedFile != "" {
			seed, err := memory.LoadSeed(cfg.Database.SeedFile)
			if err != nil {
				return err
			}
			seed.Apply(store, cfg.Pricing.DefaultCurrency)
			logger.Info("Loaded seed data", "file", cfg.Database.SeedFile)
		}
		logger.Warn("Using in-memory storage, data is lost on restart")

		a.Tx = store
		a.Rentals = store.RentalRepository
		a.Payments = store.PaymentRepository
		a.Damages = store.DamageReportRepository
		a.Vehicles = store.VehicleRegistry
		a.Customers = store.CustomerDirectory
		return nil

	case "postgres":
		logger.Debug("Connecting to database...", "connection_string",
			fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		logger.Info("Database connection established", "host", cfg.Database.Host, "database", cfg.Database.Database)

		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}

		store := postgres.NewStore(db)
		a.Tx = store
		a.Rentals = store.RentalRepository
		a.Payments = store.PaymentRepository
		a.Damages = store.DamageReportRepository
		a.Vehicles = store.VehicleRegistry
		a.Customers = store.CustomerDirectory
		a.Checks["database"] = db.PingContext
		return nil

	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// openCache puts a Redis read-through cache in front of rental reads.
func (a *App) openCache(ctx context.Context) error {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Rental cache enabled", "addr", cfg.Addr, "ttl", a.Config.RentalCacheTTL())

	a.Rentals = cache.NewCachedRentalRepository(a.Rentals, client, a.Config.RentalCacheTTL())
	a.Checks["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return nil
}

func (a *App) paymentGateway() (gateway.PaymentGateway, error) {
	cfg := a.Config.Payment
	switch cfg.Provider {
	case "stripe":
		logger.Info("Using Stripe payment gateway")
		return gateway.NewStripeGateway(cfg.StripeSecretKey, nil), nil
	case "sandbox":
		logger.Warn("Using sandbox payment gateway, no real money moves", "max_cents", cfg.SandboxMaxCents)
		return gateway.NewSandboxGateway(cfg.SandboxMaxCents, 0), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// publisher always logs events. Kafka and email are added when configured.
func (a *App) publisher() (events.Publisher, error) {
	cfg := a.Config
	fanout := events.Fanout{events.LogPublisher{}}

	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kafka.Close)
		fanout = append(fanout, kafka)
		logger.Info("Publishing events to Kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var sender notification.Sender = notification.LogSender{}
	if cfg.SendGrid.APIKey != "" {
		sender = notification.NewSendGridSender(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
		logger.Info("Sending email through SendGrid", "from", cfg.SendGrid.FromEmail)
	}
	a.Notifier = notification.NewNotifier(sender, a.Customers, cfg.SendGrid.AdminEmail)
	fanout = append(fanout, a.Notifier)

	return fanout, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
