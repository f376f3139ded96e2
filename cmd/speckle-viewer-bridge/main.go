package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"speckle-viewer-bridge/internal/app"
	"speckle-viewer-bridge/internal/config"
)

// Load configuration, wire the bridge, and serve until interrupted.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[speckle-viewer-bridge] config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge := app.New(cfg)
	if err := bridge.Run(ctx); err != nil {
		log.Fatalf("[speckle-viewer-bridge] run: %v", err)
	}
}
