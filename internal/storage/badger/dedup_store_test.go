package badger

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
)

func TestDedupStoreAddAndContains(t *testing.T) {
	db := openTestDB(t)
	dedup := NewDedupStore(db, arbor.NewLogger())
	ctx := context.Background()

	seen, err := dedup.Contains(ctx, "~abc123")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if seen {
		t.Error("Expected fresh store not to contain job")
	}

	if err := dedup.Add(ctx, "~abc123"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	seen, err = dedup.Contains(ctx, "~abc123")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !seen {
		t.Error("Expected store to contain added job")
	}
}

func TestDedupStoreAddIdempotent(t *testing.T) {
	db := openTestDB(t)
	dedup := NewDedupStore(db, arbor.NewLogger())
	ctx := context.Background()

	if err := dedup.Add(ctx, "~dup1"); err != nil {
		t.Fatalf("First add failed: %v", err)
	}
	if err := dedup.Add(ctx, "~dup1"); err != nil {
		t.Fatalf("Second add failed: %v", err)
	}

	count, err := dedup.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1 after duplicate add, got %d", count)
	}
}

func TestDedupStoreCount(t *testing.T) {
	db := openTestDB(t)
	dedup := NewDedupStore(db, arbor.NewLogger())
	ctx := context.Background()

	count, err := dedup.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty store, got count %d", count)
	}

	ids := []string{"~a1", "~b2", "~c3"}
	for _, id := range ids {
		if err := dedup.Add(ctx, id); err != nil {
			t.Fatalf("Add %s failed: %v", id, err)
		}
	}

	count, err = dedup.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != len(ids) {
		t.Errorf("Expected count %d, got %d", len(ids), count)
	}
}
