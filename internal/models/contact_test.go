package models

import "testing"

func TestDiscoverContact(t *testing.T) {
	tests := []struct {
		name           string
		description    string
		wantName       string
		wantConfidence ContactConfidence
		wantSource     string
	}{
		{
			name:           "signature with comma",
			description:    "We need a dashboard built.\n\nThanks, Sarah",
			wantName:       "Sarah",
			wantConfidence: ConfidenceHigh,
			wantSource:     "signature",
		},
		{
			name:           "signature with dash",
			description:    "Long project description here.\nBest regards — Miguel",
			wantName:       "Miguel",
			wantConfidence: ConfidenceHigh,
			wantSource:     "signature",
		},
		{
			name:           "case-insensitive keyword keeps name casing",
			description:    "details...\ncheers, Priya",
			wantName:       "Priya",
			wantConfidence: ConfidenceHigh,
			wantSource:     "signature",
		},
		{
			name:           "introduction",
			description:    "Hi! My name is Tomas and I run a small agency.",
			wantName:       "Tomas",
			wantConfidence: ConfidenceHigh,
			wantSource:     "introduction",
		},
		{
			name:           "i am introduction",
			description:    "Hello, I am Wendy from the marketing team. We need help.",
			wantName:       "Wendy",
			wantConfidence: ConfidenceHigh,
			wantSource:     "introduction",
		},
		{
			name:           "lone trailing token",
			description:    "Need a Go developer for an API.\n\nDeliverables attached.\n\nDaniel",
			wantName:       "Daniel",
			wantConfidence: ConfidenceMedium,
			wantSource:     "signature",
		},
		{
			name:           "excluded token is skipped",
			description:    "We are on Upwork daily.\n\nThanks, Regards",
			wantName:       "",
			wantConfidence: ConfidenceLow,
			wantSource:     "none",
		},
		{
			name:           "excluded lone token",
			description:    "Looking for help.\n\nBudget",
			wantName:       "",
			wantConfidence: ConfidenceLow,
			wantSource:     "none",
		},
		{
			name:           "no name anywhere",
			description:    "build me a website with three pages and a contact form",
			wantName:       "",
			wantConfidence: ConfidenceLow,
			wantSource:     "none",
		},
		{
			name:           "signature wins over introduction",
			description:    "My name is Alice and I need X.\n\nThanks, Bob",
			wantName:       "Bob",
			wantConfidence: ConfidenceHigh,
			wantSource:     "signature",
		},
		{
			name:           "lone token outside last five lines ignored",
			description:    "Henry\none\ntwo\nthree\nfour\nfive\nsix lines of body text here",
			wantName:       "",
			wantConfidence: ConfidenceLow,
			wantSource:     "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiscoverContact(tt.description)
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %s, want %s", got.Confidence, tt.wantConfidence)
			}
			if got.Source != tt.wantSource {
				t.Errorf("source = %s, want %s", got.Source, tt.wantSource)
			}
		})
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		name    string
		contact Contact
		want    string
	}{
		{
			name:    "no contact",
			contact: Contact{Confidence: ConfidenceLow, Source: "none"},
			want:    "Hey",
		},
		{
			name:    "high confidence",
			contact: Contact{Name: "Sarah", Confidence: ConfidenceHigh, Source: "signature"},
			want:    "Hey Sarah",
		},
		{
			name:    "medium confidence hedges",
			contact: Contact{Name: "Daniel", Confidence: ConfidenceMedium, Source: "signature"},
			want:    "Hey Daniel (if I have the right person)",
		},
		{
			name:    "low confidence with name hedges",
			contact: Contact{Name: "Ana", Confidence: ConfidenceLow, Source: "none"},
			want:    "Hey Ana (if I have the right person)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Greeting(tt.contact); got != tt.want {
				t.Errorf("Greeting(%+v) = %q, want %q", tt.contact, got, tt.want)
			}
		})
	}
}
