package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sh := newShell(nil, nil, os.Stdin, os.Stdout)

	a, err := app.New(cfg, logger, sh.promptCode)
	if err != nil {
		logger.Fatal("Failed to start storefront: %v", err)
	}
	defer a.Close()

	sh.sf = a.Storefront
	sh.dataLayer = a.DataLayer

	a.Mount(ctx)
	sh.run(ctx)
}
