package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aquilax/threadboard/backend"
	"github.com/aquilax/threadboard/backend/cached"
	"github.com/aquilax/threadboard/backend/memory"
	"github.com/aquilax/threadboard/backend/postgres"
	"github.com/aquilax/threadboard/backend/rest"
	"github.com/aquilax/threadboard/backend/sqlite"
)

// openBackend builds the backend selected by config.
func openBackend(ctx context.Context, config *Config, log *slog.Logger) (backend.Backend, error) {
	var db backend.Backend
	switch config.Backend {
	case "rest":
		db = rest.New(config.APIURL, rest.WithTimeout(config.Timeout), rest.WithLogger(log))
	case "memory":
		m := memory.New()
		if config.Fixture != "" {
			if err := m.LoadFixture(config.Fixture); err != nil {
				return nil, err
			}
		}
		db = m
	case "sqlite":
		s, err := sqlite.Open(ctx, config.Dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		db = s
	case "postgres":
		p, err := postgres.Open(ctx, config.Dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		db = p
	default:
		return nil, fmt.Errorf("unknown backend %q", config.Backend)
	}
	if config.Cache {
		db = cached.New(db)
	}
	return db, nil
}
