package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetimport/internal/config"
	"github.com/JonMunkholm/sheetimport/internal/core"
	"github.com/JonMunkholm/sheetimport/internal/logging"
	"github.com/JonMunkholm/sheetimport/internal/store/postgres"
	"github.com/JonMunkholm/sheetimport/internal/store/sqlite"
	"github.com/JonMunkholm/sheetimport/internal/web"
)

func main() {
	// Overload so a local .env wins over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	service := core.NewService(store, core.Options{
		MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
		MaxUploadWait:        cfg.Upload.MaxWaitTime,
		UploadTimeout:        cfg.Upload.Timeout,
		MaxFileSize:          cfg.Upload.MaxFileSize,
	})

	server := web.NewServer(service, cfg)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first so no new upload can take a slot.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := service.UploadStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		store.Close()
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		store, err := sqlite.Open(cfg.URL)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "driver", "sqlite", "path", cfg.URL)
		return store, nil

	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{
			URL:             cfg.URL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		if u, err := url.Parse(cfg.URL); err == nil {
			slog.Info("connected to database", "driver", "postgres", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database", "driver", "postgres")
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
