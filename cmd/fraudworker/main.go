package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"pesacore/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, _, cleanup, err := infrastructure.Bootstrap(ctx)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		log.Fatalf("Bootstrap error: %v", err)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker error: %v", err)
	}
}
