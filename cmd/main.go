/*
Package main is the entry point for the chatr server.

It loads configuration, initializes the global logger, opens the state store, wires the
presence, room and pairing components behind the event dispatcher and the WebSocket hub,
serves HTTP, and shuts down gracefully on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"chatr/internal/app/cleanup"
	"chatr/internal/app/events"
	"chatr/internal/app/hub"
	"chatr/internal/app/notify"
	"chatr/internal/app/pairing"
	"chatr/internal/app/presence"
	"chatr/internal/app/rooms"
	"chatr/internal/app/state"
	"chatr/internal/configs"
	"chatr/internal/handler"
	"chatr/internal/pkg/auth/jwt"
	"chatr/internal/pkg/logx"
	"chatr/internal/pkg/metrics"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	var cfgErr *configs.ConfigError
	if err != nil && !errors.As(err, &cfgErr) {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfgErr != nil {
		logx.Error(cfgErr, "Configuration incomplete, serving errors only", "key", cfgErr.Key)
		runServer(ctx, cfg.Port, handler.Unconfigured(cfgErr), nil)
		return
	}

	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_backend", cfg.StoreBackend).
		Bool("webhook_auth", cfg.WebhookAuth).
		Msg("Configuration loaded successfully")

	store, closeStore, err := state.Open(ctx, state.Options{
		Backend:       cfg.StoreBackend,
		DatabaseDSN:   cfg.DatabaseDSN,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logx.Fatal(err, "Failed to open state store", "backend", cfg.StoreBackend)
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// The hub is the transport of the dispatcher and the dispatcher is the event handler
	// of the hub, so the handler is installed once both exist.
	h := hub.New(hub.WithRecorder(collector), hub.WithTokenRefresh(clientTokenIssuer(cfg.JWTSecret)))
	deliverer := notify.NewDeliverer(h, notify.WithRecorder(collector))

	roomRegistry := rooms.NewRegistry(store, cfg.JoinAnnounceDelay)
	tracker := presence.NewTracker(store, roomRegistry)
	resolver := pairing.NewResolver(store, h, tracker, cfg.PairingAnnounceDelay)
	dispatcher := events.NewDispatcher(tracker, roomRegistry, resolver, store, deliverer, events.WithEventRecorder(collector))
	h.SetHandler(dispatcher)

	if cfg.CleanupInterval > 0 {
		sweeper := cleanup.NewSweeper(store, cleanup.WithRecorder(collector))
		go sweeper.Run(ctx, cfg.CleanupInterval, cfg.CleanupMaxAge)
	}

	router, stopLimiters := handler.Router(&handler.AppDeps{
		Config:     cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Hub:        h,
		Gatherer:   registry,
	})
	defer stopLimiters()

	runServer(ctx, cfg.Port, router, h)
}

// runServer serves until ctx ends, then drains HTTP and, when present, the hub.
func runServer(ctx context.Context, port int, router http.Handler, h *hub.Hub) {
	serverAddr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info("chatr server starting", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Hijacked WebSocket connections are not tracked by the server; the hub closes them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}
	if h != nil {
		if err := h.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Hub shutdown did not complete")
		}
	}

	logx.Info("Server gracefully stopped.")
}

func clientTokenIssuer(secret string) hub.TokenIssuer {
	return func(userID string) (string, time.Time, error) {
		expiry := time.Now().Add(jwt.ClientAccessExpiration)
		token, err := jwt.GenerateToken(&jwt.Payload{UserID: userID, Scope: jwt.ScopeClient}, secret, jwt.ClientAccessExpiration)
		return token, expiry, err
	}
}
