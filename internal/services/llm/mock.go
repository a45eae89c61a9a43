package llm

import (
	"context"
	"sync/atomic"
)

// MockProvider returns canned responses without touching the network.
// Mock pipeline runs and tests use it in place of the real factory.
type MockProvider struct {
	// Response is returned for every call when Responses is empty
	Response string

	// Responses are returned in order, wrapping around at the end
	Responses []string

	calls atomic.Int64
}

// Compile-time assertion
var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider with a single canned response
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

// GenerateContent returns the next canned response
func (m *MockProvider) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	n := m.calls.Add(1)
	text := m.Response
	if len(m.Responses) > 0 {
		text = m.Responses[int(n-1)%len(m.Responses)]
	}
	return &ContentResponse{
		Text:     text,
		Provider: ProviderMock,
		Model:    "mock",
	}, nil
}

// GetProviderType identifies the mock provider
func (m *MockProvider) GetProviderType() ProviderType {
	return ProviderMock
}

// Calls returns how many generations were requested
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// Close is a no-op
func (m *MockProvider) Close() error {
	return nil
}
