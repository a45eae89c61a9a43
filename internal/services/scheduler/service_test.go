package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/pipeline"
)

type recordingRunner struct {
	mu   sync.Mutex
	runs []pipeline.Options
	err  error
}

func (r *recordingRunner) Run(ctx context.Context, opts pipeline.Options) (*models.PipelineResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, opts)
	if r.err != nil {
		return nil, r.err
	}
	return models.NewPipelineResult("run", opts.Source, opts.MinScore, opts.Workers, opts.Mock), nil
}

func TestStartRejectsUnknownSource(t *testing.T) {
	s := NewService(&recordingRunner{}, "*/30 * * * *", []string{"carrier-pigeon"}, pipeline.Options{}, arbor.NewLogger())
	require.Error(t, s.Start())
}

func TestStartRejectsBadCronExpression(t *testing.T) {
	s := NewService(&recordingRunner{}, "every now and then", []string{models.SourceApify}, pipeline.Options{}, arbor.NewLogger())
	require.Error(t, s.Start())
}

func TestTickRunsConfiguredSource(t *testing.T) {
	runner := &recordingRunner{}
	s := NewService(runner, "", nil, pipeline.Options{Source: models.SourceApify, MinScore: 70, Workers: 4}, arbor.NewLogger())

	s.tick(models.SourceGmail)

	require.Len(t, runner.runs, 1)
	assert.Equal(t, models.SourceGmail, runner.runs[0].Source)
	assert.Equal(t, 70, runner.runs[0].MinScore)
	assert.Nil(t, runner.runs[0].ManualJobs)
}

func TestTickSwallowsInProgressRuns(t *testing.T) {
	runner := &recordingRunner{err: pipeline.ErrRunInProgress}
	s := NewService(runner, "", nil, pipeline.Options{Source: models.SourceApify}, arbor.NewLogger())

	// Must not panic or retry; the next cron tick will pick the jobs up
	s.tick(models.SourceApify)
	require.Len(t, runner.runs, 1)
}

func TestStartStopLifecycle(t *testing.T) {
	runner := &recordingRunner{}
	s := NewService(runner, "*/30 * * * *", []string{models.SourceApify, models.SourceGmail}, pipeline.Options{Source: models.SourceApify}, arbor.NewLogger())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start must refuse")
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stop is idempotent")
}
