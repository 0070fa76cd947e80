// Package app wires the market server's components together and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ccash-market/marketd/internal/app/httpapi"
	"github.com/ccash-market/marketd/internal/app/services/exchange"
	"github.com/ccash-market/marketd/internal/app/snapshot"
	"github.com/ccash-market/marketd/internal/app/storage"
	"github.com/ccash-market/marketd/internal/app/system"
	"github.com/ccash-market/marketd/internal/config"
	"github.com/ccash-market/marketd/internal/ledger"
	"github.com/ccash-market/marketd/pkg/logger"
)

// Application owns the store, the services above it and their lifecycle.
// It is an explicit, dependency-injected handle: one instance lives for the
// process lifetime and is passed to whatever serves requests.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	manager *system.Manager

	Store     *storage.Memory
	Exchange  *exchange.Service
	Snapshots *snapshot.Manager
	Ledger    *ledger.Client
}

// New builds a fully wired application. The ledger client stays nil when no
// ledger host is configured.
func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	store := storage.NewMemory()

	ledgerHost := cfg.Ledger.Host
	var ledgerClient *ledger.Client
	if ledgerHost != "" {
		ledgerClient = ledger.NewClient(ledger.Config{
			BaseURL: ledgerHost,
			Timeout: cfg.Ledger.Timeout,
		}, log.WithField("component", "ledger"))
	} else {
		ledgerHost = "Unset"
		log.Warn("LEDGER_HOST not set; ledger integration disabled")
	}

	exchangeSvc := exchange.New(store, exchange.Properties{
		LedgerHost:     ledgerHost,
		MarketUsername: cfg.Ledger.MarketUsername,
	}, log.WithField("component", "exchange"))

	snapshots := snapshot.NewManager(store, cfg.Snapshot.DataDir, log.WithField("component", "snapshot"))
	saver := snapshot.NewSaver(snapshots, cfg.Snapshot.Warmup, cfg.Snapshot.Interval, log.WithField("component", "saver"))

	manager := system.NewManager()
	if err := manager.Register(saver); err != nil {
		return nil, fmt.Errorf("register saver: %w", err)
	}

	return &Application{
		cfg:       cfg,
		log:       log,
		manager:   manager,
		Store:     store,
		Exchange:  exchangeSvc,
		Snapshots: snapshots,
		Ledger:    ledgerClient,
	}, nil
}

// Handler returns the HTTP surface of the application.
func (a *Application) Handler() http.Handler {
	return httpapi.New(a.Exchange, a.Ledger, a.log.WithField("component", "httpapi"))
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start loads the snapshot, bootstraps the ledger account and starts the
// managed services.
func (a *Application) Start(ctx context.Context) error {
	a.Snapshots.Load(ctx)

	if a.Ledger != nil {
		if err := a.Ledger.EstablishConnection(ctx); err != nil {
			return fmt.Errorf("connect to ledger: %w", err)
		}
		creds := ledger.Credentials{
			Username: a.cfg.Ledger.MarketUsername,
			Password: a.cfg.Ledger.MarketPassword,
		}
		if err := a.Ledger.EnsureMarketUser(ctx, creds, a.log); err != nil {
			return fmt.Errorf("bootstrap market user: %w", err)
		}
	}

	return a.manager.Start(ctx)
}

// Stop stops the managed services. The saver performs the final snapshot
// save as part of its shutdown.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
