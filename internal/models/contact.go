package models

import (
	"fmt"
	"regexp"
	"strings"
)

// ContactConfidence grades how certain the contact-name discovery is
type ContactConfidence string

const (
	ConfidenceHigh   ContactConfidence = "high"
	ConfidenceMedium ContactConfidence = "medium"
	ConfidenceLow    ContactConfidence = "low"
)

// Contact is the outcome of contact-name discovery over a job description
type Contact struct {
	Name       string
	Confidence ContactConfidence
	Source     string // signature, introduction or none
}

// excludedTokens are capitalised words that pattern-match like names but
// never are: platform words, sign-off words, section headers.
var excludedTokens = map[string]struct{}{
	"Upwork": {}, "Thanks": {}, "Thank": {}, "Regards": {}, "Best": {},
	"Cheers": {}, "Sincerely": {}, "Please": {}, "Hello": {}, "Looking": {},
	"Required": {}, "Skills": {}, "Requirements": {}, "About": {},
	"Description": {}, "Budget": {}, "Fixed": {}, "Hourly": {},
	"Experience": {}, "Project": {}, "Client": {},
}

var (
	// Keyword match is case-insensitive, the captured name is not: a name
	// must be a capitalised word.
	signaturePattern    = regexp.MustCompile(`(?:(?i:thanks|thank you|best regards|kind regards|warm regards|regards|best|cheers|sincerely))[,\x{2013}\x{2014}-]?\s+([A-Z][a-z]+)`)
	introductionPattern = regexp.MustCompile(`(?:(?i:my name is|i'm|i am|this is))\s+([A-Z][a-z]+)`)
	loneTokenPattern    = regexp.MustCompile(`^([A-Z][a-z]+)[.,!]?$`)
)

// DiscoverContact scans a job description for the poster's name, in
// priority order: sign-off signatures, self-introductions, then a lone
// capitalised token near the end of the text.
func DiscoverContact(description string) Contact {
	if name := firstAllowedMatch(signaturePattern, description); name != "" {
		return Contact{Name: name, Confidence: ConfidenceHigh, Source: "signature"}
	}
	if name := firstAllowedMatch(introductionPattern, description); name != "" {
		return Contact{Name: name, Confidence: ConfidenceHigh, Source: "introduction"}
	}
	if name := trailingLoneToken(description); name != "" {
		return Contact{Name: name, Confidence: ConfidenceMedium, Source: "signature"}
	}
	return Contact{Confidence: ConfidenceLow, Source: "none"}
}

// Greeting renders the proposal opening line for a discovered contact.
// Anything below high confidence hedges.
func Greeting(c Contact) string {
	if c.Name == "" {
		return "Hey"
	}
	if c.Confidence == ConfidenceHigh {
		return "Hey " + c.Name
	}
	return fmt.Sprintf("Hey %s (if I have the right person)", c.Name)
}

func firstAllowedMatch(pattern *regexp.Regexp, text string) string {
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if _, excluded := excludedTokens[m[1]]; !excluded {
			return m[1]
		}
	}
	return ""
}

// trailingLoneToken looks for a single capitalised word standing alone on
// one of the last five non-empty lines, the shape of a bare signature.
func trailingLoneToken(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	start := len(lines) - 5
	if start < 0 {
		start = 0
	}
	for i := len(lines) - 1; i >= start; i-- {
		m := loneTokenPattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		if _, excluded := excludedTokens[m[1]]; !excluded {
			return m[1]
		}
	}
	return ""
}
