package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custodex/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Serve
	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.Server.Start(ctx, bootstrap.Config.Server.Addr)
	}()

	slog.InfoContext(ctx, "Custodex operational. Press Ctrl+C to exit.")

	select {
	case err := <-errCh:
		slog.Error("API server failed", slog.Any("error", err))
		os.Exit(1)
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bootstrap.Server.Stop(shutdownCtx); err != nil {
			slog.Error("API server shutdown failed", slog.Any("error", err))
		}
		<-errCh
	}
}
