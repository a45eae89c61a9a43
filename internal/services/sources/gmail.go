package sources

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/common"
	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// GmailSource ingests job-alert emails over IMAP. Each alert message
// carries one or more job links; the ~token in each link is the job id,
// so gmail jobs always arrive with an id.
type GmailSource struct {
	config *common.GmailConfig
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.JobSource = (*GmailSource)(nil)

// NewGmailSource creates an IMAP job-alert source
func NewGmailSource(config *common.GmailConfig, logger arbor.ILogger) *GmailSource {
	return &GmailSource{
		config: config,
		logger: logger,
	}
}

// Name returns the source identifier recorded on each job
func (s *GmailSource) Name() string {
	return models.SourceGmail
}

// Ingest fetches unseen alert messages and extracts the jobs they link
func (s *GmailSource) Ingest(ctx context.Context, limit int) ([]models.RawJob, error) {
	if s.config.Host == "" || s.config.Username == "" || s.config.Password == "" {
		return nil, &interfaces.ConfigError{Field: "sources.gmail", Reason: "host, username and password are required"}
	}

	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	folder := s.config.Folder
	if folder == "" {
		folder = "INBOX"
	}
	mbox, err := c.Select(folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}
	if len(seqNums) == 0 {
		s.logger.Debug().Msg("No unseen alert messages")
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, section.FetchItem()}, messages)
	}()

	var jobs []models.RawJob
	var processed imap.SeqSet
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}

		subject := msg.Envelope.Subject
		if s.config.SubjectFilter != "" &&
			!strings.Contains(strings.ToLower(subject), strings.ToLower(s.config.SubjectFilter)) {
			continue
		}

		body, err := readMessageBody(msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Int64("seq", int64(msg.SeqNum)).Msg("Failed to parse alert body")
			continue
		}

		found := ParseAlertBody(body)
		if len(found) == 0 {
			continue
		}
		jobs = append(jobs, found...)
		processed.AddNum(msg.SeqNum)

		if limit > 0 && len(jobs) >= limit {
			break
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if s.config.MarkSeen && !processed.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.Store(&processed, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark alert messages as read")
		}
	}

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}

	s.logger.Info().
		Int("count", len(jobs)).
		Int("messages", len(seqNums)).
		Msg("Ingested gmail alert jobs")
	return jobs, nil
}

func (s *GmailSource) connect() (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var c *client.Client
	var err error
	if s.config.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.config.Username, s.config.Password); err != nil {
		c.Logout()
		return nil, &interfaces.AuthError{Service: "gmail"}
	}
	return c, nil
}

// ParseAlertBody extracts jobs from an alert message body. HTML bodies
// are walked with goquery: every anchor whose href carries a ~token is a
// job link, with the anchor text as title and the following paragraph as
// description. Plain-text bodies fall back to line scanning.
func ParseAlertBody(body string) []models.RawJob {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}

	if strings.Contains(trimmed, "<") && strings.Contains(trimmed, ">") {
		if jobs := parseAlertHTML(trimmed); len(jobs) > 0 {
			return jobs
		}
	}
	return parseAlertText(trimmed)
}

func parseAlertHTML(body string) []models.RawJob {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var jobs []models.RawJob
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		id := models.DeriveJobID(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		title := strings.TrimSpace(sel.Text())
		description := ""
		if next := sel.Closest("td,div,p").NextFiltered("td,div,p"); next.Length() > 0 {
			description = strings.TrimSpace(next.Text())
		}

		jobs = append(jobs, models.RawJob{
			JobID:       id,
			URL:         href,
			Title:       title,
			Description: description,
		})
	})
	return jobs
}

func parseAlertText(body string) []models.RawJob {
	var jobs []models.RawJob
	seen := make(map[string]bool)
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		fields := strings.Fields(line)
		for _, field := range fields {
			if !strings.HasPrefix(field, "http") {
				continue
			}
			id := models.DeriveJobID(field)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			// The line above a bare link usually holds the title
			title := ""
			if i > 0 {
				title = strings.TrimSpace(lines[i-1])
			}
			jobs = append(jobs, models.RawJob{
				JobID: id,
				URL:   field,
				Title: title,
			})
		}
	}
	return jobs
}

// readMessageBody extracts the first text part of an IMAP message,
// preferring HTML so the structured alert parser gets markup to work on.
func readMessageBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(p.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(contentType, "text/html"):
			html = string(b)
		case strings.HasPrefix(contentType, "text/plain"):
			plain = string(b)
		}
	}

	if html != "" {
		return html, nil
	}
	return strings.TrimSpace(plain), nil
}
