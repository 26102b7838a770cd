package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vestra-hq/vestra/pkg/persistence"
	"github.com/vestra-hq/vestra/pkg/persistence/file"
	"github.com/vestra-hq/vestra/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend from the database URL
// scheme. Anything that is not postgres falls back to the file store, which
// needs no external services and suits local development.
func NewPersistence(ctx context.Context, databaseURL string, logger *slog.Logger) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		persist, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return persist
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
