package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tideflow-io/tideflow/pkg/persistence"
	"github.com/tideflow-io/tideflow/pkg/persistence/file"
	"github.com/tideflow-io/tideflow/pkg/persistence/postgres"
	"github.com/tideflow-io/tideflow/pkg/persistence/redis"
)

// NewPersistence creates a persistence layer from the database URL scheme.
// postgres:// connects to PostgreSQL; anything else is treated as a file
// store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgres.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

// NewWatermarkRepository picks the poll watermark store: Redis when a URL is
// given, otherwise the main persistence layer's repository.
func NewWatermarkRepository(ctx context.Context, store persistence.Persistence, redisURL string) (persistence.WatermarkRepository, error) {
	if redisURL == "" {
		return store.WatermarkRepository(), nil
	}

	watermarks, err := redis.NewWatermarkStore(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis watermark store: %w", err)
	}

	return watermarks, nil
}

func parseProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
