// Package cmd provides shared construction helpers for the service
// entrypoints.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/carbonlens/carbonflow/pkg/persistence"
	"github.com/carbonlens/carbonflow/pkg/persistence/file"
	"github.com/carbonlens/carbonflow/pkg/persistence/postgresql"
	"github.com/carbonlens/carbonflow/pkg/persistence/redis"
)

// NewGraphStore builds a graph store from a database URL. The scheme selects
// the implementation: postgres://, redis://, everything else is treated as a
// file path.
func NewGraphStore(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.GraphStore {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		store, err := postgresql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL graph store: %w", err))
		}

		return store
	case "redis":
		store, err := redis.NewStore(ctx, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis graph store: %w", err))
		}

		return store
	default:
		store, err := file.NewStore(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create file graph store: %w", err))
		}

		return store
	}
}
