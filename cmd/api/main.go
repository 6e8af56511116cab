package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/app"
	"civicportal/internal/config"
	"civicportal/internal/handlers"
	"civicportal/internal/jobs"
	"civicportal/internal/log"
	"civicportal/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, "api")

	ctx := context.Background()

	rt, err := app.Open(ctx, cfg, logger, "civic-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, rt.Store, rt.Redis, rt.Services)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(cfg.Jobs, rt.Services.Sessions, rt.Services.Admin, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, rt)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, rt *app.Runtime) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(5 * time.Second)
	rt.Close()

	logger.Info().Msg("server exited cleanly")
}
