package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	"storefront/internal/api"
	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Google sign-in over the API takes the code in the request body, so no prompt.
	a, err := app.New(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize storefront: %v", err)
	}
	defer a.Close()

	mountCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	a.Mount(mountCtx)
	cancel()

	server := api.New(cfg, logger, api.Deps{
		Storefront: a.Storefront,
		DataLayer:  a.DataLayer,
		Google:     a.Google,
		Metrics:    a.Metrics,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown: %v", err)
	}
}
