// Command assetd runs the asset lifecycle service: validated uploads with
// optional image transcoding, safe downloads, and mark-and-sweep garbage
// collection of assets no longer referenced by any stored document.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bloglite/assetkit/handler"
	"github.com/bloglite/assetkit/pkg/asset"
	"github.com/bloglite/assetkit/pkg/collector"
	"github.com/bloglite/assetkit/pkg/config"
	"github.com/bloglite/assetkit/pkg/docstore"
	"github.com/bloglite/assetkit/pkg/httpserver"
	"github.com/bloglite/assetkit/pkg/storage"
	"github.com/bloglite/assetkit/pkg/transcode"
)

type appConfig struct {
	Addr         string     `env:"HTTP_ADDR" envDefault:":8080"`
	ServerURL    string     `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	StaticDir    string     `env:"STATIC_DIR" envDefault:"./static"`
	DatabasePath string     `env:"DATABASE_PATH" envDefault:"./blog.db"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("service exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, logger *slog.Logger) error {
	store, err := storage.NewLocalStorage(cfg.StaticDir, cfg.ServerURL)
	if err != nil {
		return err
	}

	docs, err := docstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = docs.Close() }()

	assets := asset.NewService(asset.DefaultConfig(), store, transcode.New(transcode.DefaultConfig()), logger)

	// The lock file lives next to the database, outside the asset root, so
	// the collector never sees it as an orphan.
	lockPath := filepath.Join(filepath.Dir(cfg.DatabasePath), ".assetd-collect.lock")
	gc := collector.New(docs, store, lockPath, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	handler.NewFiles(assets, store, gc, logger).Register(r)

	srv := httpserver.New(
		httpserver.WithAddr(cfg.Addr),
		httpserver.WithLogger(logger),
	)
	return srv.Run(ctx, r)
}
