package backend

import (
	"context"
	"fmt"
	"log/slog"

	"tresor/internal/finance"
	"tresor/internal/finance/memory"
	"tresor/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("%w: %s", finance.ErrUnknownBackend, config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("%w: %s", finance.ErrUnknownBackend, config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &Result{
		Backend:   repo,
		Cleanup:   repo.Close,
		SyncQueue: repo,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &Result{
		Backend: store,
	}, nil
}
