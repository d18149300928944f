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
	v1 "github.com/jaennil/guide_helper/backend/overzoom/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/overzoom"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/config"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger.Level)
	defer l.Sync()

	l.Info("starting overzoom service", "config", cfg)

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

	store, closer, err := newStore(cfg, l)
	if err != nil {
		l.Fatal("failed to open tile store", "backend", cfg.Store.Backend, "error", err)
	}
	if closer != nil {
		defer func() {
			if err := closer.Close(); err != nil {
				l.Error("failed to close tile store", "error", err)
			}
		}()
	}

	format, err := overzoom.ParseFormat(cfg.Provider.OutputFormat)
	if err != nil {
		l.Fatal("invalid output format", "error", err)
	}

	tileUseCase, err := usecase.NewTileUseCase(&usecase.Provider{
		Store:           store,
		TileSize:        cfg.Provider.TileSize,
		FloorZoom:       cfg.Provider.FloorZoom,
		Format:          format,
		Quality:         cfg.Provider.JPEGQuality,
		MaxSourcePixels: cfg.Provider.MaxSourcePixels,
	}, overzoom.NewGuard(cfg.Provider.MaxConcurrent), l)
	if err != nil {
		l.Fatal("invalid local provider", "error", err)
	}

	remoteTileUseCase := usecase.NewRemoteTileUseCase(newRemoteSource(cfg), l)

	h := handler.NewHandler(validator.New(), tileUseCase, remoteTileUseCase)

	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled, cfg.Provider.AdminEnabled)
	if cfg.Provider.AdminEnabled {
		l.Warn("provider admin routes enabled")
	}

	server := http_server.NewServer(logger.WithLogger(context.Background(), l), cfg.HTTP.Server, router)

	go func() {
		l.Info("starting http server", "port", cfg.HTTP.Server.Port, "store", store.Name())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error("server forced to shutdown", "error", err)
	}

	l.Info("server stopped")
}
