package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/pipeline"
)

// Runner executes one pipeline pass. Satisfied by the pipeline service.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*models.PipelineResult, error)
}

// Service drives unattended pipeline runs on a cron schedule, one cron
// entry per configured source. The pipeline itself is single-flight, so
// a tick that lands while a run is still executing is skipped, not
// queued: the next tick picks the jobs up anyway.
type Service struct {
	runner   Runner
	cron     *cron.Cron
	schedule string
	sources  []string
	defaults pipeline.Options
	logger   arbor.ILogger
	running  bool
}

// NewService creates the scheduler. defaults carries the per-run
// parameters (min score, worker count, mock) every scheduled run uses.
func NewService(runner Runner, schedule string, sourceNames []string, defaults pipeline.Options, logger arbor.ILogger) *Service {
	if schedule == "" {
		schedule = "*/30 * * * *"
	}
	if len(sourceNames) == 0 {
		sourceNames = []string{defaults.Source}
	}
	return &Service{
		runner:   runner,
		cron:     cron.New(),
		schedule: schedule,
		sources:  sourceNames,
		defaults: defaults,
		logger:   logger,
	}
}

// Start registers the cron entries and begins ticking
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	for _, source := range s.sources {
		if !models.ValidSource(source) {
			return fmt.Errorf("scheduler configured with unknown source %q", source)
		}
		src := source
		if _, err := s.cron.AddFunc(s.schedule, func() { s.tick(src) }); err != nil {
			return fmt.Errorf("bad cron expression %q: %w", s.schedule, err)
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("schedule", s.schedule).
		Strs("sources", s.sources).
		Msg("Scheduler started")
	return nil
}

// Stop halts ticking and waits for an in-flight tick to finish
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Scheduler stop timed out waiting for running tick")
	}
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// tick runs the pipeline for one source
func (s *Service) tick(source string) {
	opts := s.defaults
	opts.Source = source
	opts.ManualJobs = nil

	s.logger.Info().Str("source", source).Msg("Scheduled pipeline run starting")
	result, err := s.runner.Run(context.Background(), opts)
	if err != nil {
		if errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Warn().Str("source", source).Msg("Previous run still executing, skipping tick")
			return
		}
		s.logger.Error().Err(err).Str("source", source).Msg("Scheduled pipeline run failed")
		return
	}
	s.logger.Info().
		Str("source", source).
		Str("summary", result.Summary()).
		Msg("Scheduled pipeline run finished")
}
