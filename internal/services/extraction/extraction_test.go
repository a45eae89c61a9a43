package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
)

const postingHTML = `<html><body>
<header><h1 data-test="job-title">Go Pipeline Engineer</h1></header>
<section data-test="Description">
  <p>Build an <strong>automated</strong> ingestion pipeline.</p>
  <ul><li>Go</li><li>LLM integration</li></ul>
</section>
<ul class="features"><li><strong data-test="BudgetAmount">Fixed-price: $1,000 - $2,500</strong></li></ul>
<section data-test="AboutClientUser">
  <div data-qa="client-location"><strong>United States</strong></div>
  <div data-test="payment-verified">Payment method verified</div>
  <li>$15K total spent</li>
  <li>12 hires</li>
</section>
<a data-test="attachment" href="/attachments/spec.pdf?download=1">Project brief.pdf</a>
<a href="/attachments/spec.pdf?download=1">duplicate link</a>
</body></html>`

type staticFetcher struct {
	html string
	err  error
}

func (f *staticFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	return f.html, f.err
}

func TestParsePageExtractsJobDetail(t *testing.T) {
	result, err := parsePage(postingHTML, "https://board.example/jobs/~abc1")
	require.NoError(t, err)

	assert.Equal(t, "Go Pipeline Engineer", result.Title)
	assert.Contains(t, result.Description, "**automated**")
	assert.Contains(t, result.Description, "- Go")
	assert.Equal(t, "Fixed-price: $1,000 - $2,500", result.BudgetText)

	assert.Equal(t, models.BudgetFixed, result.Budget.Type)
	require.NotNil(t, result.Budget.Min)
	assert.Equal(t, 1000.0, *result.Budget.Min)
	require.NotNil(t, result.Budget.Max)
	assert.Equal(t, 2500.0, *result.Budget.Max)
}

func TestParsePageExtractsClientPanel(t *testing.T) {
	result, err := parsePage(postingHTML, "https://board.example/jobs/~abc1")
	require.NoError(t, err)

	assert.Equal(t, "United States", result.Client.Country)
	require.NotNil(t, result.Client.PaymentVerified)
	assert.True(t, *result.Client.PaymentVerified)
	require.NotNil(t, result.Client.TotalSpent)
	assert.Equal(t, 15000.0, *result.Client.TotalSpent)
	assert.Equal(t, "$15K total spent", result.Client.TotalSpentRaw)
	require.NotNil(t, result.Client.Hires)
	assert.Equal(t, 12, *result.Client.Hires)
}

func TestParsePageDeduplicatesAttachmentLinks(t *testing.T) {
	result, err := parsePage(postingHTML, "https://board.example/jobs/~abc1")
	require.NoError(t, err)

	require.Len(t, result.Attachments, 1)
	assert.Equal(t, "Project brief.pdf", result.Attachments[0].Filename)
	assert.Equal(t, "/attachments/spec.pdf?download=1", result.Attachments[0].URL)
}

func TestParsePageMissingFieldsAreZeroValued(t *testing.T) {
	result, err := parsePage("<html><body><h1>Bare title</h1></body></html>", "https://board.example/jobs/~abc1")
	require.NoError(t, err)

	assert.Equal(t, "Bare title", result.Title)
	assert.Empty(t, result.Description)
	assert.Equal(t, models.BudgetUnknown, result.Budget.Type)
	assert.Nil(t, result.Budget.Min)
	assert.Empty(t, result.Attachments)
}

func TestExtractAppliesPartialData(t *testing.T) {
	fetcher := &staticFetcher{html: postingHTML}
	extractor := NewExtractor(fetcher, t.TempDir(), arbor.NewLogger())

	job := &models.JobRecord{JobID: "~abc1", URL: "https://board.example/jobs/~abc1", Title: "alert title"}
	result, err := extractor.Extract(context.Background(), job)
	require.NoError(t, err)

	result.Apply(job)
	assert.Equal(t, "Go Pipeline Engineer", job.Title)
	assert.Equal(t, models.BudgetFixed, job.BudgetType)
	require.NotNil(t, job.Client.Hires)
	assert.Equal(t, 12, *job.Client.Hires)
	// The attachment link 404s against a dead host; the record still advances
	require.Len(t, job.Attachments, 1)
	assert.Empty(t, job.Attachments[0].ExtractedText)
}

func TestResolveURLAbsolutisesAgainstPage(t *testing.T) {
	resolved, err := resolveURL("https://board.example/jobs/~abc1", "/attachments/spec.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://board.example/attachments/spec.pdf", resolved)

	absolute, err := resolveURL("https://board.example/jobs/~abc1", "https://cdn.example/spec.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/spec.pdf", absolute)
}
