// Package server provides the public entry point for initializing the
// promediamx control plane.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/israelwong/promediamx/internal/api"
	"github.com/israelwong/promediamx/internal/api/handlers"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/config"
	"github.com/israelwong/promediamx/internal/executors"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized control plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store backs every component; Close it on shutdown.
	Store store.Store

	// Registry holds the executable capabilities.
	Registry *capability.Registry

	Config *config.Config

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes the control plane from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the control plane with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	if cfg.SeedFile != "" {
		if err := config.LoadSeed(ctx, cfg.SeedFile, dataStore); err != nil {
			dataStore.Close()
			shutdown(ctx)
			return nil, fmt.Errorf("load seed: %w", err)
		}
		log.Info().Str("file", cfg.SeedFile).Msg("🌱 Seed data loaded")
	}

	registry := capability.NewRegistry()
	executors.RegisterBuiltins(registry, executors.Deps{
		Store:    dataStore,
		Location: cfg.Dispatch.Location(),
		Assignee: cfg.Dispatch.DefaultAssignee,
	})
	log.Info().Strs("functions", registry.Names()).Msg("✅ Capabilities registered")

	h := handlers.New(dataStore, registry, cfg.Dispatch.HistoryLimit)

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Store:        dataStore,
		Registry:     registry,
		Config:       cfg,
		ShutdownFunc: shutdown,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		s := store.NewMemoryStore(cfg.Storage.DataDir)
		log.Info().Str("data_dir", cfg.Storage.DataDir).Msg("✅ In-memory store initialized")
		return s, nil
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("postgres storage requires DATABASE_URL")
		}
		s, err := store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("✅ PostgreSQL store initialized")
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
