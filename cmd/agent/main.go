package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/davidtorcivia/stifle-sub001/internal/agent/capture"
	agentsignal "github.com/davidtorcivia/stifle-sub001/internal/agent/signal"
	"github.com/davidtorcivia/stifle-sub001/internal/agent/store"
	"github.com/davidtorcivia/stifle-sub001/internal/agent/syncer"
	"github.com/davidtorcivia/stifle-sub001/internal/config"
	"github.com/davidtorcivia/stifle-sub001/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	userID, err := uuid.Parse(cfg.Agent.UserID)
	if err != nil || userID == uuid.Nil {
		logger.Fatal("AGENT_USER_ID must be a non-nil UUID", "value", cfg.Agent.UserID)
	}
	deviceID := cfg.Agent.DeviceID
	if deviceID == "" {
		deviceID, err = os.Hostname()
		if err != nil {
			logger.Fatal("failed to derive device id from hostname", "error", err)
		}
	}

	eventStore := store.NewSQLiteStore(cfg.Agent.DBPath)
	if err := eventStore.Init(); err != nil {
		logger.Fatal("failed to open local event store", "path", cfg.Agent.DBPath, "error", err)
	}
	defer eventStore.Close()

	engine := syncer.New(eventStore, cfg.Agent.ServerURL, userID, deviceID,
		cfg.Agent.SyncInterval, cfg.Agent.RequestTimeout, logger.WithComponent("syncer"))

	capturer := capture.New(eventStore, deviceID, cfg.Agent.DebounceWindow, engine.Trigger, logger.WithComponent("capture"))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRetention(ctx, eventStore, cfg.Agent.RetentionDays, logger.WithComponent("retention"))
	}()

	logger.Info("agent started", "device_id", deviceID, "server", cfg.Agent.ServerURL)

	// Lock and unlock signals arrive as lines on stdin, one kind per line.
	source := agentsignal.NewLineSource(os.Stdin)
	if err := capturer.Run(ctx, source); err != nil {
		logger.Error("signal capture stopped", "error", err)
	}

	stop()
	wg.Wait()
	logger.Info("shutdown complete")
}

func runRetention(ctx context.Context, eventStore *store.SQLiteStore, days int, logger *logger.Logger) {
	window := time.Duration(days) * 24 * time.Hour

	purge := func() {
		cutoff := time.Now().Add(-window)
		deleted, err := eventStore.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("local event purge failed", "error", err)
			return
		}
		if deleted > 0 {
			logger.Info("purged expired local events", "deleted", deleted)
		}
	}

	purge()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
