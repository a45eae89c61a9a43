package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// DefaultReplayWindow is how far a webhook timestamp may drift from now
// before the request is treated as a replay.
const DefaultReplayWindow = 5 * time.Minute

// Verifier checks webhook signatures from the approval channel.
//
// The signature scheme is HMAC-SHA256 over "v0:" + timestamp + ":" + raw
// body, hex-encoded and prefixed with "v0=". Comparison is constant-time.
type Verifier struct {
	secret []byte
	window time.Duration
	now    func() time.Time
}

// NewVerifier creates a webhook verifier for the given signing secret
func NewVerifier(secret string, window time.Duration) *Verifier {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &Verifier{
		secret: []byte(secret),
		window: window,
		now:    time.Now,
	}
}

// Verify checks the signature and the replay window for one request.
// timestamp is the raw header value, a unix-seconds string.
func (v *Verifier) Verify(timestamp, signature string, body []byte) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad webhook timestamp %q", timestamp)
	}

	drift := v.now().Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > v.window {
		return fmt.Errorf("webhook timestamp outside replay window (drift %s)", drift)
	}

	if !hmac.Equal([]byte(v.Sign(timestamp, body)), []byte(signature)) {
		return fmt.Errorf("webhook signature mismatch")
	}
	return nil
}

// Sign computes the expected signature for a timestamp and body. Exposed
// so tests and the channel simulator can produce valid requests.
func (v *Verifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}
