package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/sequence"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/telemetry"
	"github.com/andreasstove999/ecommerce-system/services/ticket-service-go/internal/ticket"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	// --- telemetry ---
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName, version)
	if err != nil {
		fatal("telemetry setup", err)
	}

	// --- DB ---
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		fatal("db connect", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			fatal("db migrate", err)
		}
	}

	// --- AMQP ---
	var publisher ticket.EventPublisher
	if cfg.PublishingEnabled() {
		conn, err := events.Dial(ctx, cfg.RabbitURL, 5, logger)
		if err != nil {
			fatal("rabbitmq connect", err)
		}
		defer conn.Close()

		p, err := events.NewPublisher(conn, sequence.NewRepository(pool), events.PublisherOptions{Producer: cfg.ServiceName})
		if err != nil {
			fatal("start publisher", err)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.Info("ticket event publishing disabled")
	}

	gateway := ticket.NewPostgresGateway(ticket.NewPoolConnSource(pool))
	svc := ticket.NewService(gateway, publisher, logger)

	// --- HTTP ---
	h := httpapi.NewHandler(svc, logger, cfg.RequestTimeout)
	r := httpapi.NewRouter(h, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", "signal", sig.String())
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown", "error", err)
	}
	cancel()

	logger.Info("shutdown complete")
}
