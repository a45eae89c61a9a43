package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/petitor/internal/interfaces"
)

// DedupEntry records a job ID the pipeline has already accepted.
// Entries are never removed; a job seen once is skipped forever.
type DedupEntry struct {
	JobID     string    `badgerhold:"key"`
	FirstSeen time.Time `json:"first_seen"`
}

// DedupStore implements the DedupStore interface for Badger
type DedupStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDedupStore creates a new DedupStore instance
func NewDedupStore(db *BadgerDB, logger arbor.ILogger) interfaces.DedupStore {
	return &DedupStore{
		db:     db,
		logger: logger,
	}
}

// Contains reports whether the job ID has been seen before
func (s *DedupStore) Contains(ctx context.Context, jobID string) (bool, error) {
	var entry DedupEntry
	err := s.db.Store().Get(jobID, &entry)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check dedup entry: %w", err)
	}
	return true, nil
}

// Add marks a job ID as seen. Adding an existing ID is a no-op.
func (s *DedupStore) Add(ctx context.Context, jobID string) error {
	var existing DedupEntry
	err := s.db.Store().Get(jobID, &existing)
	if err == nil {
		return nil // Already seen
	}
	if err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to check dedup entry: %w", err)
	}

	entry := DedupEntry{
		JobID:     jobID,
		FirstSeen: time.Now().UTC(),
	}
	if err := s.db.Store().Insert(jobID, &entry); err != nil {
		return fmt.Errorf("failed to add dedup entry: %w", err)
	}
	return nil
}

// Count returns the number of seen job IDs
func (s *DedupStore) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&DedupEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count dedup entries: %w", err)
	}
	return int(count), nil
}
