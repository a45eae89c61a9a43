package sheets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

var testHeaders = []string{
	"job_id", "url", "source", "status", "title", "fit_score", "proposal_text", "approved_at",
}

func newTestStore() (*Store, *MemoryValues) {
	backend := NewMemoryValues(testHeaders)
	store := NewStore(backend, "jobs", arbor.NewLogger())
	return store, backend
}

func record(id string, status models.Status) *models.JobRecord {
	return &models.JobRecord{
		JobID:  id,
		URL:    "https://example.com/jobs/" + id,
		Source: "manual",
		Status: status,
		Title:  "AI pipeline",
	}
}

func TestUpdateManyBatchEfficiency(t *testing.T) {
	store, backend := newTestStore()

	records := make([]*models.JobRecord, 20)
	for i := range records {
		records[i] = record(fmt.Sprintf("~%04x", i+1), models.StatusNew)
	}

	require.NoError(t, store.UpdateMany(context.Background(), records))

	assert.LessOrEqual(t, backend.Calls(), 5, "batch upsert must stay within the request budget")
	assert.Len(t, backend.Rows(), 21, "header plus one row per record")
}

func TestUpdateOneIdempotent(t *testing.T) {
	store, backend := newTestStore()
	r := record("~abc1", models.StatusScoring)

	require.NoError(t, store.UpdateOne(context.Background(), r))
	afterFirst := backend.Rows()

	require.NoError(t, store.UpdateOne(context.Background(), r))
	assert.Equal(t, afterFirst, backend.Rows(), "second identical upsert must not change the sheet")
}

func TestUpdateManyMixedUpdateAndAppend(t *testing.T) {
	store, backend := newTestStore()

	existing := record("~abc1", models.StatusScoring)
	require.NoError(t, store.UpdateOne(context.Background(), existing))

	score := 85
	existing.FitScore = &score
	existing.Status = models.StatusExtracting
	fresh := record("~def2", models.StatusNew)

	callsBefore := backend.Calls()
	require.NoError(t, store.UpdateMany(context.Background(), []*models.JobRecord{existing, fresh}))
	assert.LessOrEqual(t, backend.Calls()-callsBefore, 4)

	rows := backend.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, "~abc1", rows[1][0])
	assert.Equal(t, "extracting", rows[1][3])
	assert.Equal(t, "85", rows[1][5])
	assert.Equal(t, "~def2", rows[2][0])
}

func TestGetByID(t *testing.T) {
	store, _ := newTestStore()

	r := record("~abc1", models.StatusPendingApproval)
	r.ProposalText = "Hey there"
	require.NoError(t, store.UpdateOne(context.Background(), r))

	got, err := store.GetByID(context.Background(), "~abc1")
	require.NoError(t, err)
	assert.Equal(t, "~abc1", got.JobID)
	assert.Equal(t, models.StatusPendingApproval, got.Status)
	assert.Equal(t, "Hey there", got.ProposalText)

	_, err = store.GetByID(context.Background(), "~missing")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)
}

func TestFieldsAbsentFromHeadersAreDropped(t *testing.T) {
	store, backend := newTestStore()

	r := record("~abc1", models.StatusBoostDeciding)
	boost := true
	r.BoostDecision = &boost // No boost_decision column in testHeaders

	require.NoError(t, store.UpdateOne(context.Background(), r))

	rows := backend.Rows()
	require.Len(t, rows, 2)
	assert.Len(t, rows[1], len(testHeaders), "row width never exceeds the header row")
}

func TestDuplicateIDsInOneBatchCollapse(t *testing.T) {
	store, backend := newTestStore()

	first := record("~dup1", models.StatusNew)
	second := record("~dup1", models.StatusScoring)

	require.NoError(t, store.UpdateMany(context.Background(), []*models.JobRecord{first, second}))

	rows := backend.Rows()
	require.Len(t, rows, 2, "one sheet row per job id")
}
