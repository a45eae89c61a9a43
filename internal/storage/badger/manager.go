package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	kv     interfaces.KeyValueStorage
	dedup  interfaces.DedupStore
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		kv:     NewKVStorage(db, logger),
		dedup:  NewDedupStore(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DedupStore returns the dedup store interface
func (m *Manager) DedupStore() interfaces.DedupStore {
	return m.dedup
}

// SeedDefaults inserts built-in default KV values for keys not already
// present. Operator edits survive restarts.
func (m *Manager) SeedDefaults(ctx context.Context) error {
	for _, def := range common.GetDefaultKVValues() {
		if _, err := m.kv.Get(ctx, def.Key); err == nil {
			continue // Existing value wins
		}
		if _, err := m.kv.Upsert(ctx, def.Key, def.Value, def.Description); err != nil {
			m.logger.Warn().Err(err).Str("key", def.Key).Msg("Failed to seed default KV value")
		}
	}
	return nil
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
