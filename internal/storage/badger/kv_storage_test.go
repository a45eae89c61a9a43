package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// openTestDB opens a throwaway badgerhold store in a temp directory
func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatalf("Failed to open badger store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestKVStorageSetGet(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	if err := kv.Set(ctx, "apify_token", "secret-123", "test token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := kv.Get(ctx, "apify_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "secret-123" {
		t.Errorf("Expected secret-123, got %s", value)
	}

	// Keys are case-insensitive
	value, err = kv.Get(ctx, "APIFY_TOKEN")
	if err != nil {
		t.Fatalf("Case-insensitive get failed: %v", err)
	}
	if value != "secret-123" {
		t.Errorf("Expected secret-123, got %s", value)
	}
}

func TestKVStorageGetMissing(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())

	_, err := kv.Get(context.Background(), "missing")
	if !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestKVStorageUpsert(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	isNew, err := kv.Upsert(ctx, "profile_name", "Alex", "")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !isNew {
		t.Error("Expected first upsert to report new key")
	}

	isNew, err = kv.Upsert(ctx, "profile_name", "Sam", "")
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if isNew {
		t.Error("Expected second upsert to report existing key")
	}

	value, err := kv.Get(ctx, "profile_name")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "Sam" {
		t.Errorf("Expected Sam, got %s", value)
	}
}

func TestKVStorageDelete(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	if err := kv.Set(ctx, "temp", "value", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Delete(ctx, "temp"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := kv.Get(ctx, "temp"); !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}

	if err := kv.Delete(ctx, "never-existed"); !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound for missing key, got %v", err)
	}
}

func TestKVStorageGetAll(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	pairs := map[string]string{
		"apify_token":    "tok-1",
		"gemini_api_key": "key-2",
		"profile_name":   "Alex",
	}
	for k, v := range pairs {
		if err := kv.Set(ctx, k, v, ""); err != nil {
			t.Fatalf("Set %s failed: %v", k, err)
		}
	}

	all, err := kv.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != len(pairs) {
		t.Errorf("Expected %d pairs, got %d", len(pairs), len(all))
	}
	for k, v := range pairs {
		if all[k] != v {
			t.Errorf("Expected %s=%s, got %s", k, v, all[k])
		}
	}
}

func TestKVStorageListByPrefix(t *testing.T) {
	db := openTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	if err := kv.Set(ctx, "run_result:run_1", "{}", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set(ctx, "run_result:run_2", "{}", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := kv.Set(ctx, "profile_name", "Alex", ""); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	results, err := kv.ListByPrefix(ctx, "run_result:")
	if err != nil {
		t.Fatalf("ListByPrefix failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	for _, pair := range results {
		if pair.Key != "run_result:run_1" && pair.Key != "run_result:run_2" {
			t.Errorf("Unexpected key in prefix results: %s", pair.Key)
		}
	}
}
