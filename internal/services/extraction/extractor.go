package extraction

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/retry"
)

const extractTimeout = 2 * time.Minute

// htmlFetcher renders a posting URL to its DOM. The headless browser
// satisfies this in production; tests substitute canned HTML.
type htmlFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Extractor is the deep-extraction driver: renders the posting page,
// parses job and client detail out of it, and pulls text from any PDF
// attachments.
type Extractor struct {
	fetcher htmlFetcher
	loader  *attachmentLoader
	policy  *retry.Policy
	logger  arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Extractor = (*Extractor)(nil)

// NewExtractor creates an extractor over a browser session. attachmentDir
// is the scratch directory for downloaded files.
func NewExtractor(fetcher htmlFetcher, attachmentDir string, logger arbor.ILogger) *Extractor {
	return &Extractor{
		fetcher: fetcher,
		loader:  newAttachmentLoader(attachmentDir, logger),
		policy:  retry.NewPolicy(),
		logger:  logger,
	}
}

// Extract pulls deep job detail from the posting URL. Attachment
// failures degrade to partial results; only a page that cannot be
// fetched or parsed at all is an error.
func (e *Extractor) Extract(ctx context.Context, job *models.JobRecord) (*models.ExtractResult, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	var html string
	err := e.policy.Execute(ctx, e.logger, "fetch_job_page", func() error {
		var fetchErr error
		html, fetchErr = e.fetcher.FetchHTML(ctx, job.URL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	result, err := parsePage(html, job.URL)
	if err != nil {
		return nil, err
	}

	result.Attachments, result.AttachmentContent = e.loader.Load(ctx, job.JobID, job.URL, result.Attachments)

	e.logger.Info().
		Str("job_id", job.JobID).
		Str("budget", result.BudgetText).
		Int("attachments", len(result.Attachments)).
		Msg("Extracted job detail")

	return result, nil
}
