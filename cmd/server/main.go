package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/davidtorcivia/stifle-sub001/internal/api/http/httpctx"
	"github.com/davidtorcivia/stifle-sub001/internal/api/http/router"
	"github.com/davidtorcivia/stifle-sub001/internal/config"
	"github.com/davidtorcivia/stifle-sub001/internal/logger"
	"github.com/davidtorcivia/stifle-sub001/internal/model"
	"github.com/davidtorcivia/stifle-sub001/internal/repository/postgres"
	"github.com/davidtorcivia/stifle-sub001/internal/server"
	"github.com/davidtorcivia/stifle-sub001/internal/service"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Scoring.Timezone)
	if err != nil {
		logger.Fatal("failed to load scoring timezone", "timezone", cfg.Scoring.Timezone, "error", err)
	}

	eventRepo := postgres.NewEventRepository(db)
	scoreRepo := postgres.NewScoreRepository(db)

	syncService := service.NewSync(eventRepo, logger)
	scoreService := service.NewScore(eventRepo, scoreRepo, loc, logger)
	retention := service.NewRetention(eventRepo, cfg.Retention.Days, cfg.Retention.Interval, logger.WithComponent("retention"))
	ctxMgr := httpctx.NewManager()

	handler := router.New(syncService, scoreService, ctxMgr, db, loc, logger).Register()
	httpServer := server.NewHTTPServer(handler, fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		err := s.Start(sl)
		if err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		retention.Run(ctx)
	}()

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
