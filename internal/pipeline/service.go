package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/services/sources"
)

// Options parameterize one pipeline run. Zero values fall back to the
// configured defaults filled in by the caller.
type Options struct {
	Source     string
	Limit      int
	MinScore   int
	Workers    int
	Mock       bool
	ManualJobs []models.RawJob
}

// RunResultStore persists per-run statistics for later inspection
type RunResultStore interface {
	SaveRunResult(ctx context.Context, result *models.PipelineResult) error
}

// Service is the pipeline orchestrator. Stages run as barriers: every
// surviving record finishes stage N before stage N+1 begins, with a
// counting semaphore of capacity W bounding in-flight work per stage.
type Service struct {
	store     interfaces.SheetStore
	dedup     interfaces.DedupStore
	registry  *sources.Registry
	scorer    interfaces.Scorer
	extractor interfaces.Extractor
	generator interfaces.Generator
	booster   interfaces.BoostDecider
	notifier  interfaces.ApprovalNotifier
	events    interfaces.EventService
	results   RunResultStore
	logger    arbor.ILogger

	running atomic.Bool
}

// ErrRunInProgress is returned when a run is requested while another is
// still executing. Runs are single-flight per process.
var ErrRunInProgress = fmt.Errorf("pipeline run already in progress")

// NewService assembles the orchestrator. events and results may be nil;
// the corresponding reporting is then skipped.
func NewService(
	store interfaces.SheetStore,
	dedup interfaces.DedupStore,
	registry *sources.Registry,
	scorer interfaces.Scorer,
	extractor interfaces.Extractor,
	generator interfaces.Generator,
	booster interfaces.BoostDecider,
	notifier interfaces.ApprovalNotifier,
	events interfaces.EventService,
	results RunResultStore,
	logger arbor.ILogger,
) *Service {
	return &Service{
		store:     store,
		dedup:     dedup,
		registry:  registry,
		scorer:    scorer,
		extractor: extractor,
		generator: generator,
		booster:   booster,
		notifier:  notifier,
		events:    events,
		results:   results,
		logger:    logger,
	}
}

// Run executes one pipeline pass. Only an unknown source or a store
// failure before the first stage aborts; everything else degrades to
// per-record failure-log entries.
func (s *Service) Run(ctx context.Context, opts Options) (*models.PipelineResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	source, err := s.registry.Resolve(opts.Source, opts.ManualJobs)
	if err != nil {
		return nil, err
	}

	runID := "run_" + uuid.New().String()
	result := models.NewPipelineResult(runID, opts.Source, opts.MinScore, opts.Workers, opts.Mock)
	logger := s.logger.WithCorrelationId(runID)

	logger.Info().
		Str("source", opts.Source).
		Int("min_score", opts.MinScore).
		Int("workers", opts.Workers).
		Bool("mock", opts.Mock).
		Msg("Pipeline run starting")
	s.publish(ctx, interfaces.EventPipelineStarted, models.RunEvent{RunID: runID, Source: opts.Source})

	records, err := s.ingest(ctx, source, opts, result, logger)
	if err != nil {
		return nil, err
	}

	records = s.dedupe(ctx, records, result, logger)

	if len(records) > 0 {
		records = s.scoreAndFilter(ctx, records, opts, result, logger)
		s.extract(ctx, records, opts, result, logger)
		s.generate(ctx, records, opts, result, logger)
		s.boost(ctx, records, opts, result, logger)
		s.notify(ctx, records, opts, result, logger)
		s.persist(ctx, records, result, logger)
	}

	result.Finish(records)
	logger.Info().Str("summary", result.Summary()).Msg("Pipeline run finished")
	s.publish(ctx, interfaces.EventPipelineCompleted, models.RunEvent{RunID: runID, Source: opts.Source, Summary: result.Summary()})

	if s.results != nil {
		if err := s.results.SaveRunResult(ctx, result); err != nil {
			logger.Warn().Err(err).Msg("Failed to save run result")
		}
	}

	return result, nil
}

// Running reports whether a run is currently executing
func (s *Service) Running() bool {
	return s.running.Load()
}

// ingest pulls raw jobs from the source and normalizes them to records.
// A source that yields nothing is a successful empty run.
func (s *Service) ingest(ctx context.Context, source interfaces.JobSource, opts Options, result *models.PipelineResult, logger arbor.ILogger) ([]*models.JobRecord, error) {
	raws, err := source.Ingest(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("ingestion from %s failed: %w", source.Name(), err)
	}

	records := make([]*models.JobRecord, 0, len(raws))
	for _, raw := range raws {
		record, err := models.NewJobRecord(source.Name(), raw)
		if err != nil {
			result.AddError("skipped unidentifiable job: %v", err)
			logger.Warn().Err(err).Str("url", raw.URL).Msg("Skipping job without identity")
			continue
		}
		records = append(records, record)
	}
	result.Ingested = len(records)
	logger.Info().Int("count", len(records)).Msg("Ingested jobs")
	return records, nil
}

// dedupe drops records already seen in any previous run and registers
// the survivors so no later run picks them up again.
func (s *Service) dedupe(ctx context.Context, records []*models.JobRecord, result *models.PipelineResult, logger arbor.ILogger) []*models.JobRecord {
	fresh := records[:0]
	for _, record := range records {
		seen, err := s.dedup.Contains(ctx, record.JobID)
		if err != nil {
			// An unreadable dedup store must not drop jobs
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Dedup lookup failed, treating as fresh")
			seen = false
		}
		if seen {
			continue
		}
		if err := s.dedup.Add(ctx, record.JobID); err != nil {
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Failed to register job in dedup store")
		}
		fresh = append(fresh, record)
	}
	result.AfterDedup = len(fresh)
	logger.Info().Int("fresh", len(fresh)).Int("dropped", len(records)-len(fresh)).Msg("Deduplicated jobs")
	return fresh
}

// scoreAndFilter runs the scorer over every record and partitions on the
// threshold. A record whose scorer never produced a value passes: scorer
// unavailability must not silently discard jobs.
func (s *Service) scoreAndFilter(ctx context.Context, records []*models.JobRecord, opts Options, result *models.PipelineResult, logger arbor.ILogger) []*models.JobRecord {
	s.beginStage(ctx, "scoring", models.StatusScoring, records, result, logger)

	s.forEach(ctx, records, opts.Workers, func(record *models.JobRecord) {
		scoreResult, err := s.scorer.Score(ctx, record)
		if err != nil {
			record.AppendError("score", err)
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Scoring failed, record passes fail-open")
			return
		}
		scoreResult.Apply(record)
	})

	survivors := make([]*models.JobRecord, 0, len(records))
	for _, record := range records {
		if record.PassesFilter(opts.MinScore) {
			if err := record.Advance(models.StatusExtracting); err != nil {
				record.Fail("prefilter", err)
				continue
			}
			survivors = append(survivors, record)
			continue
		}
		if err := record.Advance(models.StatusFilteredOut); err != nil {
			record.Fail("prefilter", err)
		}
		result.FilteredOut++
	}

	// Filtered records get their terminal status persisted now; they are
	// dropped from memory and never touched again this run.
	s.persist(ctx, records, result, logger)
	result.AfterPrefilter = len(survivors)
	logger.Info().Int("survivors", len(survivors)).Int("filtered_out", result.FilteredOut).Msg("Prefilter applied")
	return survivors
}

// extract fans the deep extractor out over the survivors. Partial data is
// normal: a record whose extraction fails advances with what it has.
func (s *Service) extract(ctx context.Context, records []*models.JobRecord, opts Options, result *models.PipelineResult, logger arbor.ILogger) {
	if len(records) == 0 {
		return
	}
	// The records already carry extracting from the prefilter partition;
	// the persisted snapshot below is the stage-entry observation.
	s.persist(ctx, records, result, logger)
	s.publishStage(ctx, "extracting", records, result)

	s.forEach(ctx, records, opts.Workers, func(record *models.JobRecord) {
		extractResult, err := s.extractor.Extract(ctx, record)
		if err != nil {
			record.AppendError("extract", err)
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Extraction failed, record continues with ingested data")
			return
		}
		extractResult.Apply(record)
	})
}

func (s *Service) generate(ctx context.Context, records []*models.JobRecord, opts Options, result *models.PipelineResult, logger arbor.ILogger) {
	if len(records) == 0 {
		return
	}
	s.beginStage(ctx, "generating", models.StatusGenerating, records, result, logger)

	s.forEach(ctx, records, opts.Workers, func(record *models.JobRecord) {
		bundle, err := s.generator.Generate(ctx, record)
		if err != nil {
			record.AppendError("generate", err)
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Deliverable generation failed")
			return
		}
		bundle.Apply(record)
	})
}

func (s *Service) boost(ctx context.Context, records []*models.JobRecord, opts Options, result *models.PipelineResult, logger arbor.ILogger) {
	if len(records) == 0 {
		return
	}
	s.beginStage(ctx, "boost_deciding", models.StatusBoostDeciding, records, result, logger)

	s.forEach(ctx, records, opts.Workers, func(record *models.JobRecord) {
		verdict, err := s.booster.Decide(ctx, record)
		if err != nil {
			record.AppendError("boost", err)
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Boost decision failed")
			return
		}
		verdict.Apply(record)
	})
}

// notify posts every record to the approval channel and stores the
// returned message timestamp for the callback handler.
func (s *Service) notify(ctx context.Context, records []*models.JobRecord, opts Options, result *models.PipelineResult, logger arbor.ILogger) {
	if len(records) == 0 {
		return
	}
	s.beginStage(ctx, "pending_approval", models.StatusPendingApproval, records, result, logger)

	var sent atomic.Int64
	s.forEach(ctx, records, opts.Workers, func(record *models.JobRecord) {
		ts, err := s.notifier.Notify(ctx, record)
		if err != nil {
			record.AppendError("notify", err)
			logger.Warn().Err(err).Str("job_id", record.JobID).Msg("Approval notification failed")
			return
		}
		record.SlackMessageTS = ts
		sent.Add(1)
	})

	result.SentToApproval = int(sent.Load())
	result.Processed = len(records)
}

// beginStage advances every record, persists the stage-entry snapshot and
// broadcasts the stage event.
func (s *Service) beginStage(ctx context.Context, stage string, status models.Status, records []*models.JobRecord, result *models.PipelineResult, logger arbor.ILogger) {
	for _, record := range records {
		if err := record.Advance(status); err != nil {
			record.Fail(stage, err)
		}
	}
	s.persist(ctx, records, result, logger)
	s.publishStage(ctx, stage, records, result)
}

// forEach runs fn over the records with at most workers in flight and
// joins before returning. Each record is owned by exactly one goroutine.
func (s *Service) forEach(ctx context.Context, records []*models.JobRecord, workers int, fn func(*models.JobRecord)) {
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, record := range records {
		if ctx.Err() != nil {
			record.AppendError("pipeline", ctx.Err())
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(r *models.JobRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(r)
		}(record)
	}
	wg.Wait()
}

// persist writes the batch to the sheet. Persistence failures are run
// errors, never aborts: the records keep flowing and the next snapshot
// usually heals the gap.
func (s *Service) persist(ctx context.Context, records []*models.JobRecord, result *models.PipelineResult, logger arbor.ILogger) {
	if len(records) == 0 {
		return
	}
	if err := s.store.UpdateMany(ctx, records); err != nil {
		result.AddError("sheet persist failed: %v", err)
		logger.Error().Err(err).Int("records", len(records)).Msg("Failed to persist batch to sheet")
	}
}

func (s *Service) publishStage(ctx context.Context, stage string, records []*models.JobRecord, result *models.PipelineResult) {
	s.publish(ctx, interfaces.EventPipelineStage, models.StageEvent{
		RunID:     result.RunID,
		Source:    result.Source,
		Stage:     stage,
		Remaining: len(records),
	})
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish event")
	}
}
