package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

func TestManualSourceLimit(t *testing.T) {
	jobs := []models.RawJob{
		{JobID: "~a1", URL: "https://example.com/~a1"},
		{JobID: "~b2", URL: "https://example.com/~b2"},
		{JobID: "~c3", URL: "https://example.com/~c3"},
	}
	source := NewManualSource(jobs)

	assert.Equal(t, models.SourceManual, source.Name())

	all, err := source.Ingest(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	capped, err := source.Ingest(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry(&common.SourcesConfig{
		Apify: common.ApifyConfig{Token: "t", DatasetID: "d"},
	}, arbor.NewLogger())

	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"apify resolves", models.SourceApify, false},
		{"gmail resolves", models.SourceGmail, false},
		{"manual resolves", models.SourceManual, false},
		{"unknown is a config error", "linkedin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := registry.Resolve(tt.source, nil)
			if tt.wantErr {
				var configErr *interfaces.ConfigError
				assert.ErrorAs(t, err, &configErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, source.Name())
		})
	}
}

func TestApifyIngest(t *testing.T) {
	items := []models.RawJob{
		{ID: "~abc1", URL: "https://example.com/jobs/~abc1", Title: "AI pipeline"},
		{URL: "https://example.com/jobs/~def2", Title: "Scraper"},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/datasets/ds1/items")
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(items)
	}))
	defer server.Close()

	source := NewApifySource("tok", "ds1", arbor.NewLogger(), WithApifyBaseURL(server.URL))

	jobs, err := source.Ingest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "~abc1", jobs[0].ResolveJobID())
	assert.Equal(t, "~def2", jobs[1].ResolveJobID(), "missing id derives from the url token")
}

func TestApifyIngestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewApifySource("tok", "ds1", arbor.NewLogger(), WithApifyBaseURL(server.URL))

	_, err := source.Ingest(context.Background(), 0)
	var statusErr *interfaces.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

func TestApifyMissingConfig(t *testing.T) {
	source := NewApifySource("", "", arbor.NewLogger())
	_, err := source.Ingest(context.Background(), 0)
	var configErr *interfaces.ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestParseAlertBodyHTML(t *testing.T) {
	body := `<html><body>
		<table>
			<tr><td><a href="https://www.example.com/jobs/~0149aabbcc">Build an AI agent</a></td></tr>
			<tr><td>Looking for someone to wire up an LLM pipeline.</td></tr>
			<tr><td><a href="https://www.example.com/jobs/~0149ddeeff">Data scraping</a></td></tr>
			<tr><td><a href="https://www.example.com/unsubscribe">Unsubscribe</a></td></tr>
		</table>
	</body></html>`

	jobs := ParseAlertBody(body)
	require.Len(t, jobs, 2, "only anchors with a job token are jobs")
	assert.Equal(t, "~0149aabbcc", jobs[0].JobID)
	assert.Equal(t, "Build an AI agent", jobs[0].Title)
	assert.Equal(t, "Looking for someone to wire up an LLM pipeline.", jobs[0].Description)
	assert.Equal(t, "~0149ddeeff", jobs[1].JobID)
}

func TestParseAlertBodyPlainText(t *testing.T) {
	body := "New job alert\n\nBuild an AI agent\nhttps://www.example.com/jobs/~0149aabbcc\n"

	jobs := ParseAlertBody(body)
	require.Len(t, jobs, 1)
	assert.Equal(t, "~0149aabbcc", jobs[0].JobID)
	assert.Equal(t, "Build an AI agent", jobs[0].Title)
}

func TestParseAlertBodyDeduplicatesLinks(t *testing.T) {
	body := `<div>
		<a href="https://www.example.com/jobs/~0149aabbcc">Title link</a>
		<a href="https://www.example.com/jobs/~0149aabbcc">Apply now</a>
	</div>`

	jobs := ParseAlertBody(body)
	assert.Len(t, jobs, 1)
}
