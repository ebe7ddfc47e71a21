// Package main is the entry point for the ShortReach short link service:
// a base62 URL shortener with click tracking for affiliate product content.
package main

import (
	"ShortReach-Backend/internal/analytics"
	"ShortReach-Backend/internal/config"
	"ShortReach-Backend/internal/database"
	httpHandler "ShortReach-Backend/internal/handler/http"
	"ShortReach-Backend/internal/maintenance"
	"ShortReach-Backend/internal/repository/postgres"
	"ShortReach-Backend/internal/service"
	"ShortReach-Backend/pkg/logger"
	"ShortReach-Backend/pkg/useragent"
	"context"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting ShortReach link service", zap.String("env", cfg.Env))

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	} else {
		log.Info("skipping database migrations (auto_migrate: false)")
	}

	useragent.InitGlobal(cfg.ShortLink.UARegexesPath, log)

	storage := postgres.New(db, log)
	links := service.New(storage, useragent.Global(), &cfg.ShortLink, log)

	processorCfg := analytics.DefaultConfig()
	processorCfg.WorkerCount = cfg.Analytics.WorkerCount
	processorCfg.BufferSize = cfg.Analytics.BufferSize
	processor := analytics.NewProcessor(links, log, processorCfg)
	if err := processor.Start(); err != nil {
		log.Fatal("failed to start click processor", zap.Error(err))
	}

	sweepInterval, err := time.ParseDuration(cfg.Maintenance.SweepInterval)
	if err != nil {
		log.Warn("failed to parse sweep_interval, using default 1h", zap.Error(err))
		sweepInterval = time.Hour
	}
	sweeper := maintenance.NewSweeper(links, sweepInterval, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal("failed to start expiration sweeper", zap.Error(err))
	}

	apiServer := httpHandler.NewServer(storage, links, processor, log, cfg.ShortLink.BaseURL)

	httpServer := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      apiServer.SetupRoutes(),
		ReadTimeout:  time.Duration(cfg.HTTPServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPServer.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPServer.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("starting HTTP server", zap.String("address", cfg.HTTPServer.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down ShortReach link service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	sweeper.Stop()

	// Stop the processor after the HTTP server so in-flight redirects can
	// still hand off their clicks.
	if err := processor.Stop(); err != nil {
		log.Error("failed to stop click processor", zap.Error(err))
	}

	log.Info("shutdown complete")
}
