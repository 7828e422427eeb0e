package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/broker"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/config"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/db"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/gateway"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/internal/service"
	"github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/infra"
	_ "github.com/prashanthkr7799/praahis-restaurant-sub004/pkg/metrics"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Dashboard gateway initializing", "http_port", cfg.HTTPPort, "poll_interval", cfg.PollInterval)

	store, err := db.NewPostgresRepository(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("CRITICAL: Postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client, err := dialBroker(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("CRITICAL: RabbitMQ connection failed", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	sessions := service.NewSessionManager(store, client, cfg.SessionOpTimeout, logger)
	gw := gateway.New(sessions, store, client, cfg, logger)

	go startObservabilityServer(fmt.Sprintf("%d", cfg.MetricsPort), logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      gw.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Dashboard gateway online", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Gateway server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

// dialBroker retries the initial RabbitMQ connection with jittered
// backoff so a broker restart does not kill the boot.
func dialBroker(ctx context.Context, url string, logger *slog.Logger) (*broker.Client, error) {
	backoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)
	const maxAttempts = 8

	for {
		client, err := broker.NewClient(url, logger)
		if err == nil {
			return client, nil
		}
		if backoff.Attempts() >= maxAttempts {
			return nil, fmt.Errorf("broker unreachable after %d attempts: %w", maxAttempts, err)
		}

		wait := backoff.Next()
		logger.Error("RabbitMQ connection failed, retrying...", "wait_duration", wait, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("GATEWAY ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Observability server failed", "error", err)
	}
}
