package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gustavoveigasaoleandro/service-order-app/internal/api"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/broker"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/config"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/database"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/common/logger"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/gateway"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/rpc"
	"github.com/gustavoveigasaoleandro/service-order-app/internal/serviceorder"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service-order-app: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting", map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Postgres ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = pg.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}

	// --- Redis (advisory cache; a failure here is not fatal) ---
	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		log.Warn("redis unreachable, authorization caching disabled", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// --- Broker, registry, bridge, dispatcher ---
	amqpBroker, err := broker.Dial(cfg.Broker.URL, log)
	if err != nil {
		return err
	}
	defer amqpBroker.Close()

	if err := amqpBroker.DeclareTopology(cfg.Broker.Authorization, cfg.Broker.Stock); err != nil {
		return err
	}

	registry := rpc.NewRegistry()
	bridge := rpc.NewBridge(amqpBroker, registry, log)

	dispatcher := rpc.NewDispatcher(amqpBroker, registry, log)
	if err := dispatcher.Start(ctx, cfg.Broker.Authorization.ReplyQueue, cfg.Broker.Stock.ReplyQueue); err != nil {
		return err
	}

	// --- Gateways and workflow ---
	authGateway := gateway.NewAuthorization(
		bridge,
		cfg.Broker.Authorization,
		time.Duration(cfg.RPC.AuthorizationTimeoutMs)*time.Millisecond,
		rdb.Client,
		time.Duration(cfg.RPC.AuthCacheTTLSeconds)*time.Second,
		log,
	)
	stockGateway := gateway.NewStock(
		bridge,
		cfg.Broker.Stock,
		time.Duration(cfg.RPC.StockTimeoutMs)*time.Millisecond,
		log,
	)

	store := serviceorder.NewStore(pg.DB, log)
	workflow := serviceorder.NewWorkflow(store, authGateway, stockGateway, log)

	// --- HTTP ---
	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.Handler())
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Mount("/", api.NewServer(workflow, log).Router())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"port": cfg.HTTP.Port})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	cancel() // stops the dispatcher consume loops
	return nil
}
