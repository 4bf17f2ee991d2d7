package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/weighright/portal/internal/portal"
	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize portal service
	service, err := portal.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize portal service: %v", err)
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting portal on %s", cfg.Server.Addr())
		if err := service.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start portal: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down portal...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Stop(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Portal stopped")
}
