package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
	"github.com/ternarybob/petitor/internal/services/approval"
)

// maxCallbackBody caps the webhook payload read
const maxCallbackBody = 1 << 20

// CallbackPayload is the JSON body of an approval-channel webhook
type CallbackPayload struct {
	Action     string `json:"action"`
	JobID      string `json:"job_id"`
	User       string `json:"user,omitempty"`
	Channel    string `json:"channel,omitempty"`
	MessageTS  string `json:"message_ts,omitempty"`
	EditedText string `json:"edited_text,omitempty"`
}

// CallbackResult is the structured outcome returned to the channel.
// Collaborator failures during dispatch land in Warnings, never in the
// HTTP status: the verdict itself was applied.
type CallbackResult struct {
	Status       string   `json:"status"`
	JobID        string   `json:"job_id,omitempty"`
	JobStatus    string   `json:"job_status,omitempty"`
	NeedsEditUI  bool     `json:"needs_edit_ui,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
}

// ApprovalHandler processes signed webhooks from the approval channel
type ApprovalHandler struct {
	verifier *approval.Verifier
	store    interfaces.SheetStore
	notifier interfaces.ApprovalNotifier
	events   interfaces.EventService
	logger   arbor.ILogger
	now      func() time.Time
}

// NewApprovalHandler creates the webhook handler
func NewApprovalHandler(verifier *approval.Verifier, store interfaces.SheetStore, notifier interfaces.ApprovalNotifier, events interfaces.EventService, logger arbor.ILogger) *ApprovalHandler {
	return &ApprovalHandler{
		verifier: verifier,
		store:    store,
		notifier: notifier,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleCallback is POST /api/approval/callback. Verification failures
// are rejected before any state changes.
func (h *ApprovalHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	timestamp := r.Header.Get("X-Signature-Timestamp")
	signature := r.Header.Get("X-Signature")
	if err := h.verifier.Verify(timestamp, signature, body); err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected approval webhook")
		WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		WriteError(w, http.StatusBadRequest, "malformed callback payload")
		return
	}
	if payload.JobID == "" && payload.Action != "" {
		WriteError(w, http.StatusBadRequest, "callback payload has no job_id")
		return
	}

	result := h.dispatch(r.Context(), &payload)
	status := http.StatusOK
	if result.Status == "error" {
		status = http.StatusBadRequest
	}
	WriteJSON(w, status, result)
}

func (h *ApprovalHandler) dispatch(ctx context.Context, payload *CallbackPayload) *CallbackResult {
	switch payload.Action {
	case "approve":
		return h.approve(ctx, payload)
	case "reject":
		return h.reject(ctx, payload)
	case "edit":
		return h.edit(ctx, payload)
	}
	h.logger.Warn().Str("action", payload.Action).Str("job_id", payload.JobID).Msg("Unknown approval action")
	return &CallbackResult{
		Status:       "error",
		JobID:        payload.JobID,
		ErrorMessage: "unknown action " + payload.Action,
	}
}

func (h *ApprovalHandler) approve(ctx context.Context, payload *CallbackPayload) *CallbackResult {
	job, result := h.load(ctx, payload)
	if job == nil {
		return result
	}

	approvedAt := h.now()
	if err := job.MarkApproved(payload.MessageTS, approvedAt); err != nil {
		h.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Refused approval for job not awaiting review")
		return &CallbackResult{Status: "error", JobID: job.JobID, JobStatus: string(job.Status), ErrorMessage: err.Error()}
	}
	if err := h.store.UpdateOne(ctx, job); err != nil {
		return &CallbackResult{Status: "error", JobID: job.JobID, ErrorMessage: "failed to persist approval: " + err.Error()}
	}

	result = &CallbackResult{Status: "ok", JobID: job.JobID, JobStatus: string(job.Status)}
	h.updateChannelMessage(ctx, payload.MessageTS, job, "approved", result)

	h.publish(ctx, interfaces.EventJobApproved, models.SubmissionTrigger{
		JobID:      job.JobID,
		ApprovedBy: payload.User,
		ApprovedAt: approvedAt.UTC(),
	}, result)
	h.publish(ctx, interfaces.EventTriggerSubmission, models.SubmissionTrigger{
		JobID:      job.JobID,
		ApprovedBy: payload.User,
		ApprovedAt: approvedAt.UTC(),
	}, result)

	h.logger.Info().Str("job_id", job.JobID).Str("user", payload.User).Msg("Job approved")
	return result
}

func (h *ApprovalHandler) reject(ctx context.Context, payload *CallbackPayload) *CallbackResult {
	job, result := h.load(ctx, payload)
	if job == nil {
		return result
	}

	if err := job.Advance(models.StatusRejected); err != nil {
		return &CallbackResult{Status: "error", JobID: job.JobID, ErrorMessage: err.Error()}
	}
	job.SlackMessageTS = payload.MessageTS
	if err := h.store.UpdateOne(ctx, job); err != nil {
		return &CallbackResult{Status: "error", JobID: job.JobID, ErrorMessage: "failed to persist rejection: " + err.Error()}
	}

	result = &CallbackResult{Status: "ok", JobID: job.JobID, JobStatus: string(job.Status)}
	h.updateChannelMessage(ctx, payload.MessageTS, job, "rejected", result)
	h.publish(ctx, interfaces.EventJobRejected, models.SubmissionTrigger{JobID: job.JobID, ApprovedBy: payload.User}, result)

	h.logger.Info().Str("job_id", job.JobID).Str("user", payload.User).Msg("Job rejected")
	return result
}

// edit with text replaces the proposal in place; the job stays
// pending_approval so the reviewer can approve the edited version.
// Without text the caller is asked to open an edit UI.
func (h *ApprovalHandler) edit(ctx context.Context, payload *CallbackPayload) *CallbackResult {
	job, result := h.load(ctx, payload)
	if job == nil {
		return result
	}

	if payload.EditedText == "" {
		return &CallbackResult{Status: "ok", JobID: job.JobID, JobStatus: string(job.Status), NeedsEditUI: true}
	}

	job.ProposalText = payload.EditedText
	if err := h.store.UpdateOne(ctx, job); err != nil {
		return &CallbackResult{Status: "error", JobID: job.JobID, ErrorMessage: "failed to persist edit: " + err.Error()}
	}

	h.logger.Info().Str("job_id", job.JobID).Str("user", payload.User).Msg("Proposal edited")
	return &CallbackResult{Status: "ok", JobID: job.JobID, JobStatus: string(job.Status)}
}

func (h *ApprovalHandler) load(ctx context.Context, payload *CallbackPayload) (*models.JobRecord, *CallbackResult) {
	job, err := h.store.GetByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, interfaces.ErrRecordNotFound) {
			return nil, &CallbackResult{Status: "error", JobID: payload.JobID, ErrorMessage: "no such job"}
		}
		return nil, &CallbackResult{Status: "error", JobID: payload.JobID, ErrorMessage: "sheet lookup failed: " + err.Error()}
	}
	return job, nil
}

func (h *ApprovalHandler) updateChannelMessage(ctx context.Context, ts string, job *models.JobRecord, verdict string, result *CallbackResult) {
	if h.notifier == nil || ts == "" {
		return
	}
	if err := h.notifier.UpdateMessage(ctx, ts, job, verdict); err != nil {
		h.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to update channel message")
		result.Warnings = append(result.Warnings, "channel message not updated: "+err.Error())
	}
}

func (h *ApprovalHandler) publish(ctx context.Context, eventType interfaces.EventType, payload models.SubmissionTrigger, result *CallbackResult) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		result.Warnings = append(result.Warnings, string(eventType)+" event not published: "+err.Error())
	}
}
