package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
	"video-analyzer/shared/config"
)

// Store persists analysis results. Records are immutable once inserted:
// there is no update, only insert, read and delete. Implementations are
// safe for concurrent use.
type Store interface {
	// Insert assigns CreatedAt and stores the record. Inserting an id that
	// already exists fails.
	Insert(ctx context.Context, result *models.AnalysisResult) (*models.AnalysisResult, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]*models.AnalysisResult, error)
	// Get returns false when no record has the id.
	Get(ctx context.Context, id string) (*models.AnalysisResult, bool, error)
	// Delete returns false when no record had the id.
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
	Close()
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StorageConfig, log *logrus.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := NewPostgresStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.DriverPostgREST:
		return NewPostgRESTStore(cfg, log)
	case config.DriverFile:
		return NewFileStore(cfg.DataDir, log)
	case config.DriverMemory:
		return NewMemoryStore(log), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
