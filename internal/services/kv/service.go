package kv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// Key prefixes for the structured values the pipeline keeps beside plain
// secrets: run-result history and the submission handoff queue.
const (
	runResultPrefix  = "run_result:"
	submissionPrefix = "submission:"
)

// Service provides business logic for key/value operations
type Service struct {
	storage interfaces.KeyValueStorage
	logger  arbor.ILogger
}

// NewService creates a new key/value service
func NewService(storage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Get retrieves a value by key
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to get key/value pair")
		return "", err
	}

	s.logger.Debug().Str("key", key).Msg("Retrieved key/value pair")
	return value, nil
}

// Set stores or updates a key/value pair
func (s *Service) Set(ctx context.Context, key string, value string, description string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	err := s.storage.Set(ctx, key, value, description)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store key/value pair")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Stored key/value pair")
	return nil
}

// Delete removes a key/value pair
func (s *Service) Delete(ctx context.Context, key string) error {
	err := s.storage.Delete(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key/value pair")
		return err
	}

	s.logger.Info().Str("key", key).Msg("Deleted key/value pair")
	return nil
}

// List returns all key/value pairs
func (s *Service) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	pairs, err := s.storage.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		return nil, err
	}

	s.logger.Debug().Int("count", len(pairs)).Msg("Listed key/value pairs")
	return pairs, nil
}

// GetAll returns all key/value pairs as a map
func (s *Service) GetAll(ctx context.Context) (map[string]string, error) {
	kvMap, err := s.storage.GetAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to retrieve all key/value pairs")
		return nil, err
	}

	s.logger.Debug().Int("count", len(kvMap)).Msg("Retrieved all key/value pairs")
	return kvMap, nil
}

// SaveRunResult records a finished pipeline result under its run ID so
// operators can inspect recent runs after the fact.
func (s *Service) SaveRunResult(ctx context.Context, result *models.PipelineResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	key := runResultPrefix + result.RunID
	if err := s.storage.Set(ctx, key, string(encoded), "pipeline run result"); err != nil {
		s.logger.Error().Err(err).Str("run_id", result.RunID).Msg("Failed to save run result")
		return err
	}

	s.logger.Debug().Str("run_id", result.RunID).Msg("Saved run result")
	return nil
}

// RecentResults returns stored run results, newest first, capped at limit
func (s *Service) RecentResults(ctx context.Context, limit int) ([]*models.PipelineResult, error) {
	pairs, err := s.storage.ListByPrefix(ctx, runResultPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list run results: %w", err)
	}

	results := make([]*models.PipelineResult, 0, len(pairs))
	for _, pair := range pairs {
		if limit > 0 && len(results) >= limit {
			break
		}
		var result models.PipelineResult
		if err := json.Unmarshal([]byte(pair.Value), &result); err != nil {
			s.logger.Warn().Err(err).Str("key", pair.Key).Msg("Skipping undecodable run result")
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

// EnqueueSubmission records an approved job for the external submission
// subsystem. The engine's responsibility ends with this handoff.
func (s *Service) EnqueueSubmission(ctx context.Context, trigger models.SubmissionTrigger) error {
	encoded, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("failed to encode submission trigger: %w", err)
	}

	key := submissionPrefix + trigger.JobID
	if err := s.storage.Set(ctx, key, string(encoded), "approved job awaiting submission"); err != nil {
		s.logger.Error().Err(err).Str("job_id", trigger.JobID).Msg("Failed to enqueue submission")
		return err
	}

	s.logger.Info().Str("job_id", trigger.JobID).Msg("Queued approved job for submission")
	return nil
}

// PendingSubmissions lists approved jobs not yet picked up by the submitter
func (s *Service) PendingSubmissions(ctx context.Context) ([]models.SubmissionTrigger, error) {
	pairs, err := s.storage.ListByPrefix(ctx, submissionPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending submissions: %w", err)
	}

	triggers := make([]models.SubmissionTrigger, 0, len(pairs))
	for _, pair := range pairs {
		var trigger models.SubmissionTrigger
		if err := json.Unmarshal([]byte(pair.Value), &trigger); err != nil {
			continue
		}
		triggers = append(triggers, trigger)
	}
	return triggers, nil
}
