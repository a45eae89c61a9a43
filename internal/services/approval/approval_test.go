package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/petitor/internal/interfaces"
	"github.com/ternarybob/petitor/internal/models"
)

func reviewJob() *models.JobRecord {
	score := 85
	price := 1500.0
	boost := true
	return &models.JobRecord{
		JobID:           "~abc1",
		URL:             "https://board.example/jobs/~abc1",
		Title:           "Go Pipeline Engineer",
		FitScore:        &score,
		PricingProposed: &price,
		BoostDecision:   &boost,
		ProposalText:    "Hey Sarah\n\nI can build this.",
	}
}

func TestNotifyReturnsMessageTimestamp(t *testing.T) {
	var received postMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat.postMessage", r.URL.Path)
		require.Equal(t, "Bearer xoxb-test", r.Header.Get("Authorization"))
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(postMessageResponse{OK: true, TS: "1724800000.000100"})
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "xoxb-test", "C123", arbor.NewLogger(), WithNotifierRateLimit(100))
	ts, err := notifier.Notify(context.Background(), reviewJob())
	require.NoError(t, err)
	assert.Equal(t, "1724800000.000100", ts)

	assert.Equal(t, "C123", received.Channel)
	assert.Contains(t, received.Text, "Go Pipeline Engineer")
	assert.Contains(t, received.Text, "Fit: 85/100")
	assert.Contains(t, received.Text, "Proposed price: $1500")
}

func TestUpdateMessageAddressesOriginal(t *testing.T) {
	var received postMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat.update", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(postMessageResponse{OK: true, TS: received.TS})
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "xoxb-test", "C123", arbor.NewLogger(), WithNotifierRateLimit(100))
	err := notifier.UpdateMessage(context.Background(), "1724800000.000100", reviewJob(), "approved")
	require.NoError(t, err)
	assert.Equal(t, "1724800000.000100", received.TS)
	assert.Contains(t, received.Text, "APPROVED")
}

func TestNotifyInBandAuthErrorIsNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(postMessageResponse{OK: false, Error: "invalid_auth"})
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "bad", "C123", arbor.NewLogger(), WithNotifierRateLimit(100))
	_, err := notifier.Notify(context.Background(), reviewJob())
	var authErr *interfaces.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, calls)
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v := NewVerifier("secret", DefaultReplayWindow)
	body := []byte(`{"action":"approve","job_id":"~abc1"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	require.NoError(t, v.Verify(ts, v.Sign(ts, body), body))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v := NewVerifier("secret", DefaultReplayWindow)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := v.Sign(ts, []byte(`{"action":"approve"}`))

	err := v.Verify(ts, sig, []byte(`{"action":"reject"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"approve"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := NewVerifier("other-secret", DefaultReplayWindow).Sign(ts, body)

	err := NewVerifier("secret", DefaultReplayWindow).Verify(ts, sig, body)
	require.Error(t, err)
}

func TestVerifyRejectsReplays(t *testing.T) {
	v := NewVerifier("secret", DefaultReplayWindow)
	body := []byte(`{"action":"approve"}`)

	stale := strconv.FormatInt(time.Now().Add(-6*time.Minute).Unix(), 10)
	err := v.Verify(stale, v.Sign(stale, body), body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay window")

	// Clock skew in the other direction is rejected the same way
	future := strconv.FormatInt(time.Now().Add(6*time.Minute).Unix(), 10)
	err = v.Verify(future, v.Sign(future, body), body)
	require.Error(t, err)
}

func TestVerifyRejectsGarbageTimestamp(t *testing.T) {
	v := NewVerifier("secret", DefaultReplayWindow)
	err := v.Verify("not-a-number", "v0=whatever", []byte("{}"))
	require.Error(t, err)
}

func TestRenderReviewMessageOmitsAbsentFields(t *testing.T) {
	msg := renderReviewMessage(&models.JobRecord{JobID: "~abc1", Title: "Bare", URL: "https://board.example/jobs/~abc1"})
	assert.Contains(t, msg, "Bare")
	assert.NotContains(t, msg, "Fit:")
	assert.NotContains(t, msg, "Boost:")
	assert.NotContains(t, msg, fmt.Sprintf("%s\n\n", "Proposed"))
}
