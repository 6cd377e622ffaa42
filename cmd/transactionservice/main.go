package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cardledger/internal/config"
	"cardledger/pkg/factory"
)

func main() {
	cfg, err := config.Load(config.TransactionService)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := factory.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := factory.NewTransactionServiceApp(ctx, cfg, log, nil)
	if err != nil {
		log.Fatal("Failed to build transaction service", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting transaction service", map[string]interface{}{
		"env":              cfg.AppEnv,
		"version":          cfg.Version,
		"driver":           cfg.Database.Driver,
		"user_service_url": cfg.Services.UserServiceURL,
	})

	if err := app.Run(ctx); err != nil {
		log.Fatal("Server stopped with error", map[string]interface{}{"error": err.Error()})
	}
}
