package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/adapters/persistence"
	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/store"
)

// StoreFactory creates the record store based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePersister returns the durable backend for store.type, nil for memory
func (f *StoreFactory) CreatePersister() (store.Persister, error) {
	storeCfg := f.cfg.GetStore()

	switch storeCfg.Type {
	case "memory":
		return nil, nil
	case "sqlite":
		return persistence.NewSQLitePersister(storeCfg.Dir, f.logger)
	case "mysql":
		return persistence.NewMySQLPersister(storeCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// CreateStore opens the record store and loads persisted records
func (f *StoreFactory) CreateStore(ctx context.Context, embedder core.Embedder) (*store.Store, error) {
	persister, err := f.CreatePersister()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	s, err := store.Open(ctx, embedder, persister, f.logger)
	if err != nil {
		if persister != nil {
			_ = persister.Close()
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return s, nil
}
