package deliverables

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/retry"
)

// Gate serializes access to the docs upstream. The pipeline supplies the
// process-global instance; a nil gate means unserialized (tests, mock).
type Gate interface {
	Acquire(ctx context.Context) error
	Release()
}

// Generator is the deliverable-bundle driver: proposal text, a shared
// document, a PDF rendering, and optionally the avatar video.
//
// The proposal is the load-bearing deliverable; its failure fails the
// stage. Document, PDF and video failures are logged on the record and
// the bundle ships without them.
type Generator struct {
	writer   *ProposalWriter
	renderer *PDFRenderer
	docs     *DocsClient
	video    *VideoClient
	gate     Gate
	policy   *retry.Policy
	outDir   string
	logger   arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Generator = (*Generator)(nil)

// NewGenerator assembles the deliverable generator. docs and video may be
// nil when the corresponding collaborator is not configured.
func NewGenerator(writer *ProposalWriter, renderer *PDFRenderer, docs *DocsClient, video *VideoClient, gate Gate, outDir string, logger arbor.ILogger) *Generator {
	return &Generator{
		writer:   writer,
		renderer: renderer,
		docs:     docs,
		video:    video,
		gate:     gate,
		policy:   retry.NewPolicy(),
		outDir:   outDir,
		logger:   logger,
	}
}

// Generate produces the deliverable bundle for one job
func (g *Generator) Generate(ctx context.Context, job *models.JobRecord) (*models.DeliverableResult, error) {
	proposal, coverLetter, err := g.writer.Write(ctx, job)
	if err != nil {
		return nil, err
	}

	result := &models.DeliverableResult{
		ProposalText: proposal,
		CoverLetter:  coverLetter,
	}

	if pdfPath, err := g.renderPDF(job, proposal); err != nil {
		job.AppendError("generate_pdf", err)
		g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("PDF rendering failed, bundle ships without it")
	} else {
		result.PDFURL = pdfPath
	}

	if g.docs != nil {
		if docURL, err := g.createDocument(ctx, job, proposal); err != nil {
			job.AppendError("generate_doc", err)
			g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Document creation failed, bundle ships without it")
		} else {
			result.DocURL = docURL
		}
	}

	if g.video != nil && coverLetter != "" {
		if videoURL, err := g.video.Render(ctx, coverLetter); err != nil {
			job.AppendError("generate_video", err)
			g.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Video render failed, bundle ships without it")
		} else {
			result.VideoURL = videoURL
		}
	}

	g.logger.Info().
		Str("job_id", job.JobID).
		Bool("doc", result.DocURL != "").
		Bool("pdf", result.PDFURL != "").
		Bool("video", result.VideoURL != "").
		Msg("Generated deliverable bundle")

	return result, nil
}

// createDocument runs doc creation under the gate. The gate is held for
// the whole request including every retry attempt: releasing between
// attempts would let another goroutine interleave a TLS handshake.
func (g *Generator) createDocument(ctx context.Context, job *models.JobRecord, proposal string) (string, error) {
	if g.gate != nil {
		if err := g.gate.Acquire(ctx); err != nil {
			return "", err
		}
		defer g.gate.Release()
	}

	var docURL string
	err := g.policy.Execute(ctx, g.logger, "create_document", func() error {
		var callErr error
		docURL, callErr = g.docs.CreateDocument(ctx, job.Title, proposal)
		return callErr
	})
	return docURL, err
}

func (g *Generator) renderPDF(job *models.JobRecord, proposal string) (string, error) {
	data, err := g.renderer.Render(proposal, job.Title)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.outDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create deliverables dir: %w", err)
	}
	path := filepath.Join(g.outDir, fmt.Sprintf("%s_proposal.pdf", sanitizeID(job.JobID)))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("cannot write proposal PDF: %w", err)
	}
	return path, nil
}

func sanitizeID(id string) string {
	out := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
