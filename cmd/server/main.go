package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/avillagra/turnball/internal/bus"
	"github.com/avillagra/turnball/internal/config"
	"github.com/avillagra/turnball/internal/httpapi"
	"github.com/avillagra/turnball/internal/store"
	"github.com/avillagra/turnball/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	st, err := store.Open(cfg.DatabaseURL, store.WithLogger(logger))
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	reg := bus.NewRegistry(logger)
	api := httpapi.New(st, reg, logger)
	handler := httpapi.SetupRoutes(api, ws.Handler(st, reg, clockwork.NewRealClock(), logger))

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}
