package interfaces

import "context"

// StorageManager - composite interface for all local storage operations
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	DedupStore() DedupStore

	// LoadVariablesFromFiles seeds the KV store from TOML key files
	LoadVariablesFromFiles(ctx context.Context, dirPath string) error

	// SeedDefaults upserts the built-in default KV values
	SeedDefaults(ctx context.Context) error

	DB() interface{}
	Close() error
}
