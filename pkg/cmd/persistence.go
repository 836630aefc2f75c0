// Package cmd wires shared infrastructure for the masonflow binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/persistence/memory"
	"github.com/stonebase/masonflow/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from a database URL. A
// postgres:// or postgresql:// scheme selects PostgreSQL; memory:// selects
// the in-process store used for development and tests.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported database URL %q, expected postgres:// or memory://", databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return provider
}
