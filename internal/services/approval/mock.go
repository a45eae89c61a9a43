package approval

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

// MockNotifier fabricates message timestamps without touching a chat
// workspace. Mock pipeline runs use it in place of the real notifier.
type MockNotifier struct {
	seq    atomic.Int64
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ApprovalNotifier = (*MockNotifier)(nil)

// NewMockNotifier creates a notifier that never leaves the process
func NewMockNotifier(logger arbor.ILogger) *MockNotifier {
	return &MockNotifier{logger: logger}
}

// Notify logs the review message instead of posting it
func (m *MockNotifier) Notify(ctx context.Context, job *models.JobRecord) (string, error) {
	ts := fmt.Sprintf("mock.%06d", m.seq.Add(1))
	m.logger.Info().
		Str("job_id", job.JobID).
		Str("message_ts", ts).
		Msg("Mock approval notification")
	return ts, nil
}

// UpdateMessage logs the verdict instead of editing a message
func (m *MockNotifier) UpdateMessage(ctx context.Context, ts string, job *models.JobRecord, verdict string) error {
	m.logger.Info().
		Str("job_id", job.JobID).
		Str("message_ts", ts).
		Str("verdict", verdict).
		Msg("Mock approval message update")
	return nil
}
