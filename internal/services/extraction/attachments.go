package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/models"
)

// maxAttachmentBytes caps a single download; postings occasionally link
// multi-hundred-megabyte design archives that are useless as prompt text.
const maxAttachmentBytes = 20 << 20

// attachmentLoader downloads posting attachments to the scratch directory
// and pulls text out of the PDFs among them.
type attachmentLoader struct {
	httpClient *http.Client
	dir        string
	baseURL    string
	logger     arbor.ILogger
}

func newAttachmentLoader(dir string, logger arbor.ILogger) *attachmentLoader {
	return &attachmentLoader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		dir:        dir,
		logger:     logger,
	}
}

// Load fetches every attachment, extracts text from the PDFs, and returns
// the updated attachment list plus the concatenated text. Per-attachment
// failures are logged and skipped; a posting with one broken link still
// yields the rest.
func (l *attachmentLoader) Load(ctx context.Context, jobID, pageURL string, attachments []models.Attachment) ([]models.Attachment, string) {
	if len(attachments) == 0 {
		return attachments, ""
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		l.logger.Warn().Err(err).Str("dir", l.dir).Msg("Cannot create attachment scratch dir, skipping attachments")
		return attachments, ""
	}

	var content strings.Builder
	for i := range attachments {
		att := &attachments[i]

		localPath, err := l.download(ctx, jobID, pageURL, att)
		if err != nil {
			l.logger.Warn().Err(err).
				Str("job_id", jobID).
				Str("attachment", att.Filename).
				Msg("Attachment download failed")
			continue
		}
		att.LocalPath = localPath

		if !strings.EqualFold(filepath.Ext(localPath), ".pdf") {
			continue
		}
		text, err := extractPDFText(localPath)
		if err != nil {
			l.logger.Warn().Err(err).
				Str("job_id", jobID).
				Str("attachment", att.Filename).
				Msg("PDF text extraction failed")
			continue
		}
		att.ExtractedText = text

		if text != "" {
			if content.Len() > 0 {
				content.WriteString("\n\n")
			}
			fmt.Fprintf(&content, "=== %s ===\n%s", att.Filename, text)
		}
	}

	return attachments, content.String()
}

func (l *attachmentLoader) download(ctx context.Context, jobID, pageURL string, att *models.Attachment) (string, error) {
	target, err := resolveURL(pageURL, att.URL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("attachment fetch returned status %d", resp.StatusCode)
	}

	localPath := filepath.Join(l.dir, fmt.Sprintf("%s_%s", sanitizeID(jobID), sanitizeFilename(att.Filename)))
	out, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxAttachmentBytes)); err != nil {
		os.Remove(localPath)
		return "", err
	}
	return localPath, nil
}

// extractPDFText pulls page content out of a PDF on disk. pdfcpu writes
// one Content_page_N file per page; they are concatenated in page order.
func extractPDFText(path string) (string, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "petitor-pdf-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(data)
	}

	var text strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page, ok := pageTexts[pageNum]
		if !ok || page == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(page)
	}
	return text.String(), nil
}

// resolveURL absolutises an attachment href against the posting page
func resolveURL(pageURL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("bad attachment url %q: %w", href, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("bad page url %q: %w", pageURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, id)
}

func sanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if cleaned == "" {
		return "attachment"
	}
	return cleaned
}
