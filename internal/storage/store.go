package storage

import (
	"context"
	"fmt"
	"log/slog"

	"chemvis/internal/config"
	"chemvis/internal/infrastructure"
	"chemvis/pkg/contracts/domain"
)

// Store is the dataset history
type Store interface {
	// Insert assigns the id, timestamp and label, stores the summary with
	// its parsed rows and evicts the oldest entries beyond capacity.
	Insert(ctx context.Context, summary domain.DatasetSummary, records []domain.EquipmentRecord) (InsertResult, error)

	// List returns up to limit summaries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]domain.DatasetSummary, error)

	// Get returns a retained summary or a *domain.NotFoundError.
	Get(ctx context.Context, id int64) (domain.DatasetSummary, error)

	// Equipment returns the rows a retained summary was computed from, in
	// upload order, or a *domain.NotFoundError.
	Equipment(ctx context.Context, id int64) ([]domain.EquipmentRecord, error)

	Count(ctx context.Context) (int, error)
	Capacity() int
	Close() error
}

// InsertResult is the outcome of a single insert
type InsertResult struct {
	Summary domain.DatasetSummary
	Evicted []int64
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "storage").With(slog.String("driver", cfg.Driver))

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	switch cfg.Driver {
	case "", config.StorageDriverMemory:
		logger.Info("using in-memory dataset history", slog.Int("capacity", capacity))
		return NewMemoryStore(capacity), nil
	case config.StorageDriverFile:
		store, err := OpenFileStore(cfg.Path, capacity)
		if err != nil {
			return nil, err
		}
		logger.Info("using file dataset history",
			slog.String("path", cfg.Path),
			slog.Int("capacity", capacity))
		return store, nil
	case config.StorageDriverPostgres:
		store, err := OpenPostgresStore(ctx, cfg.DSN, capacity, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres dataset history", slog.Int("capacity", capacity))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
