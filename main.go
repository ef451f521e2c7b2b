package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"options-relay/config"
	"options-relay/internal/analysis"
	"options-relay/internal/auth"
	"options-relay/internal/broker"
	"options-relay/internal/cache"
	"options-relay/internal/classifier"
	"options-relay/internal/events"
	"options-relay/internal/lifecycle"
	"options-relay/internal/logging"
	"options-relay/internal/lot"
	"options-relay/internal/relay"
	"options-relay/internal/store"
	"options-relay/internal/vault"
)

func main() {
	// Load configuration from config.json (if present) plus environment overrides
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		Component:  "main",
		JSONFormat: cfg.Logging.JSONFormat,
	})
	logging.SetDefault(logger)
	logger.Info("structured logging initialized")

	// internal/broker and internal/lifecycle log through zerolog directly
	// rather than the internal/logging shim; build one from the same
	// config so both loggers agree on level and format.
	zlog := newZerologLogger(cfg.Logging)

	ctx := context.Background()

	// Load the broker app_id / JWT secret / operator password hash from Vault
	// when enabled, falling back to whatever config/env already supplied.
	vaultClient, err := vault.NewClient(cfg.Vault)
	if err != nil {
		log.Fatalf("failed to construct vault client: %v", err)
	}
	creds, err := vaultClient.Load(ctx, vault.Credentials{
		BrokerAppID:      cfg.Broker.AppID,
		JWTSigningSecret: cfg.Auth.JWTSecret,
	})
	if err != nil {
		log.Fatalf("failed to load startup credentials: %v", err)
	}
	cfg.Broker.AppID = creds.BrokerAppID
	cfg.Auth.JWTSecret = creds.JWTSigningSecret
	logger.Info("startup credentials loaded", "vault_enabled", vaultClient.IsEnabled())

	// Load the classification tables that turn indicator output into a
	// trade signal (§6.3).
	table, err := classifier.LoadTable(cfg.Classifier.MasterCodePath, cfg.Classifier.SignalTablePath)
	if err != nil {
		log.Fatalf("failed to load classifier tables: %v", err)
	}
	logger.Info("classifier tables loaded",
		"master_code_path", cfg.Classifier.MasterCodePath,
		"signal_table_path", cfg.Classifier.SignalTablePath)

	analysisCfg, err := analysis.FromIndicatorConfig(cfg.Indicator)
	if err != nil {
		log.Fatalf("failed to build analysis config: %v", err)
	}

	// Initialize the shared broadcast bus every component publishes/subscribes
	// through (§3.3, §6.2).
	bus := events.NewBus()
	logger.Info("event bus initialized")

	// Initialize auth. A nil *auth.Manager leaves the /ws route open, which
	// is the single-operator dev-mode posture (§6.1 AUTH_ENABLED note).
	var authMgr *auth.Manager
	if cfg.Auth.Enabled {
		authMgr = auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenDuration)
		logger.Info("auth enabled", "access_token_duration", cfg.Auth.AccessTokenDuration)
	} else {
		logger.Info("auth disabled, /ws is open")
	}

	// Initialize Redis-backed contract dedup lock + analysis snapshot cache.
	// Degrades in place on failure; never blocks the trading path (§7).
	cacheService, err := cache.NewService(cfg.Redis, logger)
	if err != nil {
		log.Fatalf("failed to construct cache service: %v", err)
	}
	defer cacheService.Close()
	logger.Info("cache service initialized", "healthy", cacheService.IsHealthy())

	// Keep the per-asset analysis snapshot cache current for the REST
	// status surface without any handler touching a worker goroutine.
	bus.SubscribeAll(func(e events.Event) {
		if e.Type != events.TypeAnalysis {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			snap := cache.AnalysisSnapshot{Asset: e.Symbol, Data: e.Data, UpdatedAt: time.Now().Unix()}
			if err := cacheService.PutAnalysisSnapshot(ctx, snap); err != nil {
				logger.Warn("failed to cache analysis snapshot", "asset", e.Symbol, "error", err)
			}
		}()
	})

	// Initialize the Postgres audit log. A configured-but-unreachable
	// database is a startup failure (unlike the cache's degrade posture),
	// since the audit log has no in-process fallback.
	var sink *store.Sink
	if cfg.Database.Enabled {
		db, err := store.NewDB(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}

		repo := store.NewRepository(db)
		sink = store.NewSink(repo, logger)
		sink.WireLotSessions(bus)
		logger.Info("audit log initialized")
	} else {
		logger.Info("audit log disabled")
	}

	// Initialize the Lot Coordinator (§4.7).
	lotCoordinator := lot.New(bus)

	// Initialize the Trade Lifecycle Manager (§4.6), chaining the Lot
	// Coordinator's result handling with the audit log's fire-and-forget
	// write, and wiring the cache service as its external dedup lock.
	onResolved := func(res lifecycle.Resolution) {
		lotCoordinator.OnResult(res.Contract.Profit)
		if sink != nil {
			sink.RecordResolution(res)
		}
	}
	lifecycleMgr := lifecycle.New(bus, zlog, onResolved)
	lifecycleMgr.SetLocker(cacheService)

	// SessionFactory defers opening the upstream websocket until a worker
	// actually needs one, capturing only the connection settings from
	// config (§4.4).
	sessionFactory := func(ctx context.Context, apiToken, appID string) (*broker.Session, error) {
		if appID == "" {
			appID = cfg.Broker.AppID
		}
		session := broker.NewSession(broker.Config{
			URL:              cfg.Broker.URL,
			AppID:            appID,
			ConnectTimeout:   cfg.Broker.ConnectTimeout,
			AuthorizeTimeout: cfg.Broker.AuthorizeTimeout,
			HistoryTimeout:   cfg.Broker.HistoryTimeout,
		}, zlog)
		return session, nil
	}

	hub := relay.NewHub(bus, logger)
	core := relay.NewCore(hub, bus, lotCoordinator, lifecycleMgr, table, analysisCfg, sessionFactory,
		cfg.Lot.Ladder, cfg.Broker.Granularity, cfg.Broker.HistoryCount, logger)

	server := relay.NewServer(relay.ServerConfig{
		Port:            cfg.Server.Port,
		Host:            cfg.Server.Host,
		AllowedOrigins:  splitOrigins(cfg.Server.AllowedOrigins),
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
	}, hub, core, lotCoordinator, cacheService, authMgr, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("relay server failed: %v", err)
		}
	}()
	logger.Info("relay server started", "port", cfg.Server.Port)

	// Wait for interrupt or terminate, then drain in-flight connections.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during relay server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

// newZerologLogger builds the zerolog.Logger internal/broker and
// internal/lifecycle log through, level and format matching whatever
// internal/logging.New was just given.
func newZerologLogger(cfg config.LoggingConfig) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if !cfg.JSONFormat {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// splitOrigins turns config's comma-separated AllowedOrigins string into the
// slice relay.ServerConfig expects. "*" and "" both mean "no restriction",
// which NewServer already treats an empty slice as.
func splitOrigins(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
