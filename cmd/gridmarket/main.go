package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridmarket/gridmarket/internal/auth"
	"github.com/gridmarket/gridmarket/internal/config"
	"github.com/gridmarket/gridmarket/internal/engine"
	"github.com/gridmarket/gridmarket/internal/feed"
	"github.com/gridmarket/gridmarket/internal/governance"
	"github.com/gridmarket/gridmarket/internal/handler"
	"github.com/gridmarket/gridmarket/internal/ledger"
	"github.com/gridmarket/gridmarket/internal/service"
	"github.com/gridmarket/gridmarket/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores.
	orderStore := store.NewOrderStore()
	tradeStore := store.NewTradeStore()
	reconStore := store.NewReconStore()
	paramStore := store.NewParamStore(cfg.FeeBps, cfg.ClearingEnabled)

	// Ledger: Postgres when configured, in-memory otherwise.
	var ldg ledger.Ledger
	if cfg.DatabaseURL != "" {
		pg, err := ledger.NewPostgresLedger(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to ledger database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		ldg = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
		ldg = ledger.NewMemLedger()
	}

	// Governance pauser: HTTP collaborator when configured.
	var pauser governance.Pauser
	if cfg.GovernanceURL != "" {
		pauser = governance.NewHTTPClient(cfg.GovernanceURL, 5*time.Second, 10*time.Second)
	} else {
		pauser = governance.NewStatic(false)
	}

	// Auth.
	registry := auth.NewRegistry()
	authSvc := auth.NewService(registry, cfg.JWTSecret, cfg.TokenTTL)
	if cfg.AdminPassword != "" {
		if _, err := authSvc.Register(cfg.AdminName, cfg.AdminPassword, true); err != nil {
			logger.Error("failed to bootstrap admin", slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		logger.Warn("ADMIN_PASSWORD not set, no admin participant bootstrapped")
	}

	// Engine.
	book := engine.NewBook()
	matcher := engine.NewMatcher(book, orderStore)
	hub := feed.NewHub(logger)
	settler := engine.NewSettler(
		book, orderStore, tradeStore, reconStore, paramStore,
		ldg, hub, logger, cfg.FeeAccount, cfg.CommitTimeout, cfg.CommitRetries,
	)
	scheduler := engine.NewScheduler(matcher, settler, paramStore, pauser, logger, cfg.ClearingInterval)
	sweeper := engine.NewExpirySweeper(cfg.ExpirySweepInterval, matcher)

	// Services.
	orderSvc := service.NewOrderService(matcher, sweeper, orderStore, tradeStore, registry, pauser)
	marketSvc := service.NewMarketService(paramStore, tradeStore, reconStore, matcher, pauser)

	// Router.
	router := handler.NewRouter(authSvc, orderSvc, marketSvc, scheduler, hub, logger)

	// Background loops.
	scheduler.Start(ctx)
	sweeper.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops the
	// scheduler and sweeper goroutines).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
