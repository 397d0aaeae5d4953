package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/billbuddy/internal/config"
	"github.com/mmynk/billbuddy/internal/connectivity"
	"github.com/mmynk/billbuddy/internal/metrics"
	"github.com/mmynk/billbuddy/internal/migration"
	"github.com/mmynk/billbuddy/internal/queue"
	"github.com/mmynk/billbuddy/internal/records"
	"github.com/mmynk/billbuddy/internal/recyclebin"
	"github.com/mmynk/billbuddy/internal/remote"
	"github.com/mmynk/billbuddy/internal/service"
	"github.com/mmynk/billbuddy/internal/storage/sqlite"
	"github.com/mmynk/billbuddy/internal/syncer"
)

// App is everything a command needs, opened once per invocation.
type App struct {
	Config   config.Config
	Store    *sqlite.Store
	Ledger   *service.Ledger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	// Applied is how many migrations ran while opening.
	Applied int
}

// Open opens the local database, brings its records up to the current
// shape and wires the ledger. A migration failure is returned as is and
// must stop the program.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	slog.Debug("Storage initialized", "database", cfg.Database.Path)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	engine, err := migration.NewEngine(store, migration.All(time.Now), m)
	if err != nil {
		store.Close()
		return nil, err
	}
	applied, err := engine.Run(ctx, migration.CurrentVersion)
	if err != nil {
		store.Close()
		return nil, WrapExitError(ExitCommandError, "migrations failed", err)
	}

	rs := records.New(store)
	bin := recyclebin.New(rs, m)

	var opts []service.Option
	var signal connectivity.Signal
	if cfg.Sync.RemoteURL != "" {
		monitor := connectivity.NewMonitor(false)
		monitor.Probe(ctx, &http.Client{Timeout: 5 * time.Second}, cfg.Sync.RemoteURL)
		signal = monitor

		policy := cfg.Retry.Policy()
		policy.OnAttempt = func(attempt int, err error) {
			m.RetryAttempts.Inc()
		}
		client := remote.NewClient(nil, cfg.Sync.RemoteURL, cfg.Sync.Token, m)
		opts = append(opts, service.WithSyncer(syncer.New(rs, client, cfg.Sync.UserID,
			syncer.WithStrategy(cfg.Sync.ConflictStrategy()),
			syncer.WithRetry(policy),
		)))
	}
	q := queue.New(store, signal, m)

	return &App{
		Config:   cfg,
		Store:    store,
		Ledger:   service.New(rs, bin, q, opts...),
		Metrics:  m,
		Registry: reg,
		Applied:  applied,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}
