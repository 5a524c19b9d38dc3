package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/choreledger/internal/config"
	"github.com/dukerupert/choreledger/internal/database"
	"github.com/dukerupert/choreledger/internal/events"
	"github.com/dukerupert/choreledger/internal/ledger"
	"github.com/dukerupert/choreledger/internal/logging"
	"github.com/dukerupert/choreledger/internal/metrics"
	"github.com/dukerupert/choreledger/internal/server"
	"github.com/dukerupert/choreledger/internal/store"
	"github.com/dukerupert/choreledger/internal/topup"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	opts := server.Options{
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		LockMonths: cfg.LockMonths,
		Clock:      ledger.NewClock(cfg.Location()),
		Metrics:    metrics.New(),
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "amqp"))
		if err != nil {
			slog.Warn("event publishing disabled", "error", err)
		} else {
			defer pub.Close()
			opts.Publisher = pub
		}
	}

	srv := server.New(db, opts, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	scheduler := topup.NewScheduler(srv.Topups(), store.NewFamilyStore(db), opts.Clock, cfg.TopupHour,
		opts.Metrics, logger)
	scheduler.Start(bgCtx)

	go srv.RateLimiter().RunCleanup(bgCtx, time.Hour)

	go func() {
		slog.Info("choreledger starting", "addr", ":"+cfg.Port, "timezone", cfg.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	scheduler.Stop()
	bgCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
