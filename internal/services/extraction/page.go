package extraction

import (
	"fmt"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/petitor/internal/models"
)

// Selector fallback chains for the posting page. The board markup moves
// around between A/B buckets, so each field tries data-test hooks first
// and degrades to structural selectors.
var (
	titleSelectors = []string{
		`[data-test="job-title"]`,
		`h1[itemprop="title"]`,
		"header h1",
		"h1",
	}
	descriptionSelectors = []string{
		`[data-test="Description"]`,
		`[data-test="job-description"]`,
		`section[itemprop="description"]`,
		"section.job-description",
	}
	budgetSelectors = []string{
		`[data-test="BudgetAmount"]`,
		`[data-test="budget"]`,
		"ul.features li strong",
		".budget",
	}
	skillSelectors = []string{
		`[data-test="Skill"] span`,
		`[data-test="skill-badge"]`,
		".skills a",
	}
)

// clientField maps a label on the "About the client" panel to a setter
type clientField struct {
	labels []string
	apply  func(*models.ClientInfo, string)
}

var clientFields = []clientField{
	{
		labels: []string{"total spent", "spent"},
		apply: func(c *models.ClientInfo, v string) {
			spend := models.ParseSpend(v)
			c.TotalSpentRaw = spend.Raw
			c.TotalSpent = spend.Amount
		},
	},
	{
		labels: []string{"hires", "hire"},
		apply: func(c *models.ClientInfo, v string) {
			if n, err := strconv.Atoi(firstNumber(v)); err == nil {
				c.Hires = &n
			}
		},
	},
}

// parsePage extracts structured job detail from the rendered posting DOM.
// Missing fields come back zero-valued; only unparseable HTML is an error.
func parsePage(html, pageURL string) (*models.ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse job page: %w", err)
	}

	result := &models.ExtractResult{}

	result.Title = firstText(doc, titleSelectors)
	result.Description = extractDescription(doc, pageURL)
	result.BudgetText = firstText(doc, budgetSelectors)
	result.Budget = models.ParseBudget(result.BudgetText)
	result.Client = extractClient(doc)
	result.Attachments = extractAttachmentLinks(doc)

	return result, nil
}

// extractDescription converts the description subtree to markdown so the
// downstream prompts keep headings, lists and emphasis.
func extractDescription(doc *goquery.Document, pageURL string) string {
	for _, selector := range descriptionSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		inner, err := sel.Html()
		if err != nil || strings.TrimSpace(inner) == "" {
			continue
		}
		converter := md.NewConverter(pageURL, true, nil)
		markdown, err := converter.ConvertString(inner)
		if err != nil {
			// Fall back to flattened text rather than dropping the field
			return strings.TrimSpace(sel.Text())
		}
		return strings.TrimSpace(markdown)
	}
	return ""
}

func extractClient(doc *goquery.Document) models.ClientInfo {
	var client models.ClientInfo

	panel := doc.Find(`[data-test="AboutClientUser"], [data-test="about-client"], section.about-client`).First()
	scope := panel
	if panel.Length() == 0 {
		scope = doc.Selection
	}

	if country := scope.Find(`[data-qa="client-location"] strong, [data-test="client-location"]`).First(); country.Length() > 0 {
		client.Country = strings.TrimSpace(country.Text())
	}

	scope.Find("li, div, span, strong").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(text) > 80 {
			return
		}
		lower := strings.ToLower(text)
		for _, field := range clientFields {
			for _, label := range field.labels {
				if strings.Contains(lower, label) {
					field.apply(&client, text)
					return
				}
			}
		}
	})

	if badge := scope.Find(`[data-test="payment-verified"], .payment-verified`).First(); badge.Length() > 0 {
		verified := true
		client.PaymentVerified = &verified
	} else if scope.Length() > 0 {
		text := strings.ToLower(scope.Text())
		if strings.Contains(text, "payment method verified") {
			verified := true
			client.PaymentVerified = &verified
		} else if strings.Contains(text, "payment method not verified") ||
			strings.Contains(text, "payment unverified") {
			verified := false
			client.PaymentVerified = &verified
		}
	}

	return client
}

// extractAttachmentLinks finds downloadable attachments on the posting.
// Only links that look like real files are kept.
func extractAttachmentLinks(doc *goquery.Document) []models.Attachment {
	var attachments []models.Attachment
	seen := make(map[string]struct{})

	doc.Find(`a[data-test="attachment"], a[href*="/attachments/"], a[href$=".pdf"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}

		name := strings.TrimSpace(s.Text())
		if name == "" {
			name = filenameFromURL(href)
		}
		attachments = append(attachments, models.Attachment{
			Filename: name,
			URL:      href,
		})
	})

	return attachments
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstNumber(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}

func filenameFromURL(href string) string {
	trimmed := strings.TrimRight(href, "/")
	if q := strings.IndexByte(trimmed, '?'); q >= 0 {
		trimmed = trimmed[:q]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "attachment"
	}
	return trimmed
}
