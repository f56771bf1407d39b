package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberpass/internal/app"
	"memberpass/internal/platform/config"
	"memberpass/internal/platform/logger"
)

// main wires configuration into the app container and owns the HTTP server
// lifecycle. Business logic lives in internal/pass.
func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config file")
	envFile := flag.String("env-file", ".env", "path to .env file (ignored if missing)")
	flag.Parse()

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           application.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting http server", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := application.Close(); err != nil {
		log.Error("closing dependencies failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
