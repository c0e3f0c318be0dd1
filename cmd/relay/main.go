package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tailored-agentic-units/relay/relay"
	"github.com/tailored-agentic-units/relay/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to config file, JSON or YAML (optional)")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		authToken  = flag.String("token", "", "Bearer token for WebSocket and admin endpoints (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := relay.DefaultConfig()
	if *configFile != "" {
		loaded, err := relay.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	r, err := relay.New(&cfg, relay.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create relay: %v", err)
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Merge(&server.Config{
		Addr:           cfg.Addr,
		AuthToken:      cfg.AuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := server.New(r, srvCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("relay listening", "addr", srvCfg.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}

		// Ending every session closes the subscription channels, which in
		// turn drops any WebSocket connection Shutdown could not reach.
		r.Close()
	}
}
