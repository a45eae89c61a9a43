package deliverables

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/services/llm"
)

func proposalReply() string {
	reply, _ := json.Marshal(map[string]string{
		"proposal":     "# Proposal\n\nHey Sarah\n\nI can build this pipeline.\n\n- Ingest\n- Score",
		"cover_letter": "I build Go pipelines. This posting matches my stack. Happy to start this week.",
	})
	return string(reply)
}

func generatorJob() *models.JobRecord {
	return &models.JobRecord{
		JobID:       "~abc1",
		Title:       "Go Pipeline Engineer",
		Description: "Build the thing.\n\nThanks, Sarah",
	}
}

func TestProposalWriterDiscoversContact(t *testing.T) {
	provider := llm.NewMockProvider(proposalReply())
	writer := NewProposalWriter(provider, "", arbor.NewLogger())

	job := generatorJob()
	proposal, coverLetter, err := writer.Write(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, proposal, "Hey Sarah")
	assert.NotEmpty(t, coverLetter)
	assert.Equal(t, "Sarah", job.ContactName)
	assert.Equal(t, models.ConfidenceHigh, job.ContactConfidence)
}

func TestProposalWriterMalformedReplyIsValidationError(t *testing.T) {
	provider := llm.NewMockProvider("here's a great proposal for you")
	writer := NewProposalWriter(provider, "", arbor.NewLogger())

	_, _, err := writer.Write(context.Background(), generatorJob())
	var validationErr *interfaces.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 1, provider.Calls(), "validation errors are not retried")
}

func TestRenderProducesValidPDF(t *testing.T) {
	renderer := NewPDFRenderer(arbor.NewLogger())

	data, err := renderer.Render("# Proposal\n\nHey there\n\n- point one\n- point two\n\n`code` and **bold**.", "fallback")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderStripsFrontmatter(t *testing.T) {
	meta, body := splitFrontmatter("---\ntitle: Custom Title\nsubject: application\n---\n\n# Body\n\nText.")
	assert.Equal(t, "Custom Title", meta.Title)
	assert.Equal(t, "application", meta.Subject)
	assert.Equal(t, "# Body\n\nText.", body)

	meta, body = splitFrontmatter("# No frontmatter here")
	assert.Empty(t, meta.Title)
	assert.Equal(t, "# No frontmatter here", body)
}

func TestDocsClientClassifiesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			json.NewEncoder(w).Encode(createDocResponse{URL: "https://docs.example/d/1"})
		case "Bearer bad":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	logger := arbor.NewLogger()

	url, err := NewDocsClient(server.URL, "good", 0, logger).CreateDocument(context.Background(), "t", "# md")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example/d/1", url)

	_, err = NewDocsClient(server.URL, "bad", 0, logger).CreateDocument(context.Background(), "t", "# md")
	var authErr *interfaces.AuthError
	assert.ErrorAs(t, err, &authErr)

	_, err = NewDocsClient(server.URL, "flaky", 0, logger).CreateDocument(context.Background(), "t", "# md")
	var statusErr *interfaces.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
}

// countingGate fails the test if two goroutines are ever inside at once
type countingGate struct {
	t        *testing.T
	inFlight atomic.Int32
	acquired atomic.Int32
}

func (g *countingGate) Acquire(ctx context.Context) error {
	if g.inFlight.Add(1) > 1 {
		g.t.Error("gate admitted two holders at once")
	}
	g.acquired.Add(1)
	return nil
}

func (g *countingGate) Release() { g.inFlight.Add(-1) }

func TestGenerateBundlesDeliverables(t *testing.T) {
	docsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(createDocResponse{URL: "https://docs.example/d/42"})
	}))
	defer docsServer.Close()

	logger := arbor.NewLogger()
	provider := llm.NewMockProvider(proposalReply())
	gate := &countingGate{t: t}

	generator := NewGenerator(
		NewProposalWriter(provider, "", logger),
		NewPDFRenderer(logger),
		NewDocsClient(docsServer.URL, "tok", 0, logger),
		nil,
		gate,
		t.TempDir(),
		logger,
	)

	job := generatorJob()
	result, err := generator.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.Contains(t, result.ProposalText, "Hey Sarah")
	assert.Equal(t, "https://docs.example/d/42", result.DocURL)
	assert.NotEmpty(t, result.PDFURL)
	assert.Equal(t, int32(1), gate.acquired.Load())
	assert.False(t, job.HasErrors())
}

func TestGenerateSurvivesDocFailure(t *testing.T) {
	docsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer docsServer.Close()

	logger := arbor.NewLogger()
	provider := llm.NewMockProvider(proposalReply())

	generator := NewGenerator(
		NewProposalWriter(provider, "", logger),
		NewPDFRenderer(logger),
		NewDocsClient(docsServer.URL, "tok", 0, logger),
		nil,
		nil,
		t.TempDir(),
		logger,
	)

	job := generatorJob()
	result, err := generator.Generate(context.Background(), job)
	require.NoError(t, err, "doc failure must not fail the bundle")
	assert.Empty(t, result.DocURL)
	assert.NotEmpty(t, result.ProposalText)
	assert.True(t, job.HasErrors())
}

func TestVideoClientPollsToCompletion(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(renderStatus{ID: "r1", Status: "queued"})
			return
		}
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(renderStatus{ID: "r1", Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(renderStatus{ID: "r1", Status: "done", URL: "https://video.example/r1.mp4"})
	}))
	defer server.Close()

	client := NewVideoClient(server.URL, "tok", 10*time.Millisecond, time.Second, arbor.NewLogger())
	url, err := client.Render(context.Background(), "Hello, I build pipelines.")
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/r1.mp4", url)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}
