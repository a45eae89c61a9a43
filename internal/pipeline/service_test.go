package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/services/sheets"
	"github.com/ternarybob/petitor/internal/services/sources"
)

var testHeaders = []string{
	"job_id", "url", "source", "status", "title", "fit_score",
	"proposal_text", "slack_message_ts", "errors",
}

type mapDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMapDedup() *mapDedup { return &mapDedup{seen: make(map[string]struct{})} }

func (d *mapDedup) Contains(ctx context.Context, jobID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[jobID]
	return ok, nil
}

func (d *mapDedup) Add(ctx context.Context, jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[jobID] = struct{}{}
	return nil
}

func (d *mapDedup) Count(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen), nil
}

type stubScorer struct {
	score func(job *models.JobRecord) (*models.ScoreResult, error)
}

func (s *stubScorer) Score(ctx context.Context, job *models.JobRecord) (*models.ScoreResult, error) {
	if s.score == nil {
		return &models.ScoreResult{Score: 80, Reasoning: "fits"}, nil
	}
	return s.score(job)
}

type stubExtractor struct{ err error }

func (s *stubExtractor) Extract(ctx context.Context, job *models.JobRecord) (*models.ExtractResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	min, max := 1000.0, 2000.0
	return &models.ExtractResult{
		Budget: models.Budget{Type: models.BudgetFixed, Min: &min, Max: &max},
	}, nil
}

type stubGenerator struct {
	gate     *Gate
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *stubGenerator) Generate(ctx context.Context, job *models.JobRecord) (*models.DeliverableResult, error) {
	if s.gate != nil {
		if err := s.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		now := s.inFlight.Add(1)
		for {
			prev := s.maxSeen.Load()
			if now <= prev || s.maxSeen.CompareAndSwap(prev, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		s.inFlight.Add(-1)
		s.gate.Release()
	}
	return &models.DeliverableResult{
		ProposalText: "Hey\n\nProposal for " + job.Title,
		DocURL:       "https://docs.example/d/" + job.JobID,
	}, nil
}

type stubBooster struct{}

func (s *stubBooster) Decide(ctx context.Context, job *models.JobRecord) (*models.BoostResult, error) {
	return &models.BoostResult{Boost: true, Reasoning: "verified client"}, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	posted  []string
	blockCh chan struct{}
}

func (s *stubNotifier) Notify(ctx context.Context, job *models.JobRecord) (string, error) {
	if s.blockCh != nil {
		<-s.blockCh
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posted = append(s.posted, job.JobID)
	return fmt.Sprintf("172480000%d.000100", len(s.posted)), nil
}

func (s *stubNotifier) UpdateMessage(ctx context.Context, ts string, job *models.JobRecord, verdict string) error {
	return nil
}

type testHarness struct {
	service  *Service
	store    *sheets.Store
	values   *sheets.MemoryValues
	dedup    *mapDedup
	notifier *stubNotifier
	gen      *stubGenerator
}

func newHarness(t *testing.T, scorer interfaces.Scorer, gen *stubGenerator) *testHarness {
	t.Helper()
	logger := arbor.NewLogger()
	values := sheets.NewMemoryValues(testHeaders)
	store := sheets.NewStore(values, "jobs", logger)
	dedup := newMapDedup()
	notifier := &stubNotifier{}
	if gen == nil {
		gen = &stubGenerator{}
	}

	service := NewService(
		store,
		dedup,
		sources.NewRegistry(&common.SourcesConfig{}, logger),
		scorer,
		&stubExtractor{},
		gen,
		&stubBooster{},
		notifier,
		nil,
		nil,
		logger,
	)
	return &testHarness{service: service, store: store, values: values, dedup: dedup, notifier: notifier, gen: gen}
}

func manualJobs(n int) []models.RawJob {
	jobs := make([]models.RawJob, n)
	for i := range jobs {
		jobs[i] = models.RawJob{
			URL:         fmt.Sprintf("https://board.example/jobs/~%04x", i+1),
			Title:       fmt.Sprintf("Job %d", i+1),
			Description: "Build a pipeline.",
		}
	}
	return jobs
}

func TestRunHappyPath(t *testing.T) {
	h := newHarness(t, &stubScorer{}, nil)

	result, err := h.service.Run(context.Background(), Options{
		Source:     models.SourceManual,
		MinScore:   70,
		Workers:    4,
		ManualJobs: manualJobs(3),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Ingested)
	assert.Equal(t, 3, result.AfterDedup)
	assert.Equal(t, 3, result.AfterPrefilter)
	assert.Equal(t, 0, result.FilteredOut)
	assert.Equal(t, 3, result.SentToApproval)
	assert.Equal(t, 0, result.WithErrors)

	for _, record := range result.Records {
		assert.Equal(t, models.StatusPendingApproval, record.Status)
		assert.NotEmpty(t, record.SlackMessageTS)
		assert.NotEmpty(t, record.ProposalText)
		require.NotNil(t, record.BoostDecision)
		assert.True(t, *record.BoostDecision)
		require.NotNil(t, record.PricingProposed)
		assert.Equal(t, 1500.0, *record.PricingProposed)
	}

	stored, err := h.store.GetByID(context.Background(), "~0001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, stored.Status)
}

func TestRunPrefilterCullsAndFailsOpen(t *testing.T) {
	scorer := &stubScorer{score: func(job *models.JobRecord) (*models.ScoreResult, error) {
		switch job.Title {
		case "Job 1":
			return &models.ScoreResult{Score: 90, Reasoning: "strong"}, nil
		case "Job 2":
			return &models.ScoreResult{Score: 30, Reasoning: "weak"}, nil
		default:
			return nil, &interfaces.StatusError{Code: 503, Body: "scorer down"}
		}
	}}
	h := newHarness(t, scorer, nil)

	result, err := h.service.Run(context.Background(), Options{
		Source:     models.SourceManual,
		MinScore:   70,
		Workers:    2,
		ManualJobs: manualJobs(3),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilteredOut)
	// Job 3's scorer kept failing; a nil score passes fail-open
	assert.Equal(t, 2, result.AfterPrefilter)

	culled, err := h.store.GetByID(context.Background(), "~0002")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilteredOut, culled.Status)

	failedOpen, err := h.store.GetByID(context.Background(), "~0003")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, failedOpen.Status)
	assert.Nil(t, failedOpen.FitScore)
}

func TestRunDedupAcrossRuns(t *testing.T) {
	h := newHarness(t, &stubScorer{}, nil)
	opts := Options{Source: models.SourceManual, MinScore: 70, Workers: 2, ManualJobs: manualJobs(2)}

	first, err := h.service.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.AfterDedup)

	second, err := h.service.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Ingested)
	assert.Equal(t, 0, second.AfterDedup)
	assert.Equal(t, 0, second.SentToApproval)
}

func TestRunSerializesDocCreation(t *testing.T) {
	gen := &stubGenerator{gate: NewGate()}
	h := newHarness(t, &stubScorer{}, gen)

	_, err := h.service.Run(context.Background(), Options{
		Source:     models.SourceManual,
		MinScore:   0,
		Workers:    4,
		ManualJobs: manualJobs(6),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), gen.maxSeen.Load(), "doc creation must never run in parallel")
}

func TestRunEmptyIngestionSucceeds(t *testing.T) {
	h := newHarness(t, &stubScorer{}, nil)

	result, err := h.service.Run(context.Background(), Options{
		Source:  models.SourceManual,
		Workers: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Ingested)
	assert.Equal(t, 0, result.SentToApproval)
	assert.Empty(t, h.notifier.posted)
}

func TestRunUnknownSourceAborts(t *testing.T) {
	h := newHarness(t, &stubScorer{}, nil)

	_, err := h.service.Run(context.Background(), Options{Source: "carrier-pigeon", Workers: 1})
	var configErr *interfaces.ConfigError
	require.ErrorAs(t, err, &configErr)
}

func TestRunIsSingleFlight(t *testing.T) {
	h := newHarness(t, &stubScorer{}, nil)
	h.notifier.blockCh = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.service.Run(context.Background(), Options{
			Source:     models.SourceManual,
			Workers:    1,
			ManualJobs: manualJobs(1),
		})
		done <- err
	}()

	require.Eventually(t, h.service.Running, time.Second, time.Millisecond)

	_, err := h.service.Run(context.Background(), Options{Source: models.SourceManual, Workers: 1})
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(h.notifier.blockCh)
	require.NoError(t, <-done)
}

func TestGateReleaseWithoutAcquirePanics(t *testing.T) {
	gate := NewGate()
	assert.Panics(t, func() { gate.Release() })
}
