package interfaces

import (
	"context"

	"github.com/ternarybob/petitor/internal/models"
)

// Scorer rates a job's fit against the operator profile.
//
// Returns:
//   - *models.ScoreResult: score in [0,100] with reasoning
//   - error: transport or validation failure; the orchestrator records it
//     on the job and continues with a nil score (fail-open)
type Scorer interface {
	Score(ctx context.Context, job *models.JobRecord) (*models.ScoreResult, error)
}

// Extractor pulls deep job and client detail from the posting URL using a
// headless browser session. Attachment text is concatenated and truncated
// to models.MaxAttachmentContent characters.
type Extractor interface {
	Extract(ctx context.Context, job *models.JobRecord) (*models.ExtractResult, error)
}

// Generator produces the deliverable bundle: proposal text, an external
// document, a PDF rendering, and optionally a spoken-avatar video. The
// document-creation call runs inside the serialization gate for the whole
// request including retries.
type Generator interface {
	Generate(ctx context.Context, job *models.JobRecord) (*models.DeliverableResult, error)
}

// BoostDecider decides whether the application merits paid boosting. The
// decision is a property of client quality, not of fit.
type BoostDecider interface {
	Decide(ctx context.Context, job *models.JobRecord) (*models.BoostResult, error)
}

// ApprovalNotifier posts the review message to the approval channel and
// updates it after a reviewer acts.
type ApprovalNotifier interface {
	// Notify posts the approval request and returns the channel message
	// timestamp used to address later updates.
	Notify(ctx context.Context, job *models.JobRecord) (string, error)

	// UpdateMessage rewrites the message at ts with a status confirmation
	UpdateMessage(ctx context.Context, ts string, job *models.JobRecord, verdict string) error
}
