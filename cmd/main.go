package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fintrack/paper_trading_service/config"
	"github.com/fintrack/paper_trading_service/data"
	"github.com/fintrack/paper_trading_service/data/cache"
	"github.com/fintrack/paper_trading_service/data/repository/postgres"
	"github.com/fintrack/paper_trading_service/internal/externalApi/quoteApi"
	"github.com/fintrack/paper_trading_service/internal/reportGenerator/xlsxGenerator"
	"github.com/fintrack/paper_trading_service/internal/scheduler"
	"github.com/fintrack/paper_trading_service/internal/service/ledgerService"
	"github.com/fintrack/paper_trading_service/internal/transport/httpapi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	quoteApiClient := quoteApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	ledgerSrv := ledgerService.New(cfg, pgRepo, redisCache, quoteApiClient, reportGenerator)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh quote cache", ledgerSrv.RefreshQuoteCache, cfg.Jobs.RefreshQuotesInterval, true)
	sched.Start()
	defer sched.Stop()

	controller := httpapi.NewController(ledgerSrv)
	server := httpapi.NewServer(cfg, controller)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", slog.String("err", err.Error()))
		}
	}()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", slog.String("err", err.Error()))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
