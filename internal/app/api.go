package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	v1 "github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer func() { _ = l.Sync() }()

	l.Info("starting imagery service", "config", cfg)

	ctx := logger.WithLogger(context.Background(), l)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize telemetry", "error", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				l.Error("failed to shutdown telemetry", "error", err)
			}
		}()
		l.Info("telemetry initialized", "service", cfg.Telemetry.ServiceName)
	}

	services, err := NewServices(cfg, l)
	if err != nil {
		l.Fatal("failed to initialize services", "error", err)
	}
	defer services.Close()

	if cfg.Cache.PurgeOnStart {
		go func() {
			_, _ = services.Layer.PurgeExpired(ctx)
		}()
	}

	if cfg.Layer.ScreenWidth > 0 && cfg.Layer.ScreenHeight > 0 {
		err := services.Layer.SetView(ctx, usecase.View{
			Zoom:   2,
			Width:  cfg.Layer.ScreenWidth,
			Height: cfg.Layer.ScreenHeight,
		})
		if err != nil {
			l.Error("failed to set initial viewport", "error", err)
		}
	}

	validate := validator.New()
	h := handler.NewHandler(validate, services.Layer, services.Status, services.Prefetch)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	server := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	l.Info("shutting down http server...", "address", server.Addr)
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http server shutdown completed")
	}

	l.Info("application shutdown completed")
}
