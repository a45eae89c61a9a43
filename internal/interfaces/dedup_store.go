package interfaces

import "context"

// DedupStore is a persistent set of job IDs that have already entered the
// pipeline. Contains is always observed before Add for the same id, so a
// job is processed at most once ever unless the store is lost.
type DedupStore interface {
	// Contains reports whether the job ID has been seen before
	Contains(ctx context.Context, jobID string) (bool, error)

	// Add marks the job ID as seen
	Add(ctx context.Context, jobID string) error

	// Count returns the number of seen job IDs
	Count(ctx context.Context) (int, error)
}
