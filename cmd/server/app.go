package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/flatlease/internal/config"
	"github.com/mmynk/flatlease/internal/eventbus"
	"github.com/mmynk/flatlease/internal/handler"
	"github.com/mmynk/flatlease/internal/metrics"
	"github.com/mmynk/flatlease/internal/notify"
	"github.com/mmynk/flatlease/internal/scheduler"
	"github.com/mmynk/flatlease/internal/service"
	"github.com/mmynk/flatlease/internal/storage/sqlite"
	"github.com/mmynk/flatlease/pkg/logging"
)

var flags struct {
	port      int
	dbPath    string
	logLevel  string
	logFormat string
}

func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.IntVar(&flags.port, "port", 0, "HTTP port (overrides PORT)")
	pf.StringVar(&flags.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "text or json (overrides LOG_FORMAT)")
}

// loadConfig reads the environment and applies any flags that were set.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.port != 0 {
		cfg.Port = flags.port
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	return cfg, nil
}

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	store     *sqlite.SQLiteStore
	bus       *eventbus.Bus
	metrics   *metrics.Metrics
	stream    *handler.EventStream
	services  *service.Services
	scheduler *scheduler.Scheduler
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	slog.Info("Storage initialized", "database", cfg.DBPath)

	a := &app{
		cfg:     cfg,
		store:   store,
		bus:     eventbus.New(cfg.EventBufferSize, slog.Default()),
		metrics: metrics.New(),
		stream:  handler.NewEventStream(cfg.AllowedOrigins...),
	}
	a.bus.Subscribe("metrics", a.metrics)
	a.bus.Subscribe("notify", notify.New(nil, slog.Default()), notify.EventTypes...)
	a.bus.Subscribe("stream", a.stream)
	a.metrics.WatchBus(a.bus)

	a.services = service.New(store, a.bus, service.WithMonthlyDueDay(cfg.MonthlyDueDay))
	a.scheduler = scheduler.New(cfg.SweepInterval, a.metrics, slog.Default(), scheduler.Jobs(a.services)...)
	return a, nil
}

func (a *app) Close() {
	a.bus.Stop()
	if err := a.store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}
