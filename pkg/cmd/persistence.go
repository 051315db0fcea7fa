// Package cmd holds shared construction helpers for the service binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/relayhq/relay/pkg/persistence"
	"github.com/relayhq/relay/pkg/persistence/memory"
	"github.com/relayhq/relay/pkg/persistence/postgresql"
)

// NewPersistence creates the store for the given database URL. A postgres
// URL gets the durable backend; "memory://" is for local development and
// tests only.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "memory":
		return memory.NewPersistence(), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q (expected postgres:// or memory://)", databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	return parts[0]
}
