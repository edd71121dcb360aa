package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"drumkits/internal/auth"
	"drumkits/internal/backend"
	"drumkits/internal/catalog"
	"drumkits/internal/config"
	"drumkits/internal/db"
	"drumkits/internal/kit"
	"drumkits/internal/render"
	"drumkits/internal/server"
	"drumkits/internal/submit"
	"drumkits/pkg/logger"
)

func main() {
	config.LoadDotenv(".env.local", ".env")
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false).Fatal().Err(err).Msg("invalid config")
	}
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := backend.Open(ctx, cfg.Backend, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open catalog source")
	}
	defer closeSource()

	persister, closePersister, err := openPersister(ctx, cfg.Catalog, log)
	if err != nil {
		log.Fatal().Err(err).Str("cache", cfg.Catalog.Cache).Msg("open catalog cache")
	}
	defer closePersister()

	store := catalog.NewStore(catalog.Config{
		Fetcher:      newFetcher(cfg, source, log),
		Persister:    persister,
		TTL:          cfg.Catalog.TTL,
		Version:      cfg.Catalog.Version,
		FetchTimeout: cfg.Catalog.FetchTimeout,
		Logger:       log.With().Str("component", "catalog").Logger(),
	})
	if store.Warm(ctx) {
		log.Info().Str("key", store.Key()).Msg("catalog warmed from cache")
	}

	pages, err := render.New(render.Config{
		SiteName: cfg.Pages.SiteName,
		Images: kit.Images{
			BaseURL:  cfg.Images.BaseURL,
			Version:  cfg.Images.Version,
			Fallback: cfg.Images.Fallback,
		},
		PerPage:     cfg.Pages.PerPage,
		WindowLimit: cfg.Pages.WindowLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("parse templates")
	}

	notifier := submit.NewNotifier(cfg.Submit.WebhookURL, cfg.Submit.Source, 10*time.Second)
	if !notifier.Configured() {
		log.Warn().Msg("submission webhook not configured, submissions will fail")
	}

	var authSvc *auth.Service
	if cfg.Admin.Secret != "" {
		authSvc = auth.NewService(cfg.Admin.Secret, cfg.Admin.TokenTTL)
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Store:    store,
		Source:   source,
		Renderer: pages,
		Submit: submit.NewService(
			submit.NewLimiter(cfg.Submit.MaxPerWindow, cfg.Submit.Window, cfg.Submit.MaxTracked),
			notifier,
		),
		Auth:   authSvc,
		Admin:  auth.Admin{User: cfg.Admin.User, PasswordHash: cfg.Admin.PasswordHash},
		Logger: log,
	})
	go srv.Watch(ctx)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Str("env", cfg.Env).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func newFetcher(cfg config.Config, source backend.Source, log zerolog.Logger) catalog.Fetcher {
	var f catalog.Fetcher = catalog.SourceFetcher{Source: source}
	if cfg.Catalog.Endpoint != "" {
		f = catalog.NewEndpointFetcher(cfg.Catalog.Endpoint, cfg.Catalog.FetchTimeout)
	}
	if cfg.IsDevelopment() && cfg.Catalog.SnapshotPath != "" {
		f = catalog.WithSnapshotFallback(f, cfg.Catalog.SnapshotPath, log)
	}
	return f
}

func openPersister(ctx context.Context, cfg config.CatalogConfig, log zerolog.Logger) (catalog.Persister, func(), error) {
	switch cfg.Cache {
	case "redis":
		p, err := catalog.NewRedisPersister(ctx, cfg.RedisURL, "")
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "scylla":
		session, err := db.Connect(ctx, db.ClusterConfig{
			Hosts:       cfg.Scylla.Hosts,
			Port:        cfg.Scylla.Port,
			Keyspace:    cfg.Scylla.Keyspace,
			Consistency: cfg.Scylla.Consistency,
			Replication: cfg.Scylla.Replication,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return catalog.NewScyllaPersister(session, cfg.Scylla.Keyspace), session.Close, nil
	case "none", "":
		return nil, func() {}, nil
	default:
		p, err := catalog.NewFilePersister(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {}, nil
	}
}
