// Package slack adapts the Slack events API and web API to the internal
// conversation model: request signing, event classification, echo filtering,
// and outbound sends.
package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const signatureVersion = "v0"

// replayWindow bounds how old a signed request may be before it is rejected
// as a replay, per Slack's request-signing contract.
const replayWindow = 5 * time.Minute

var (
	// ErrSigningSecretMissing means verification cannot run; requests are
	// rejected rather than waved through.
	ErrSigningSecretMissing = errors.New("slack signing secret not configured")
	// ErrStaleTimestamp marks a request outside the replay window.
	ErrStaleTimestamp = errors.New("slack request timestamp outside replay window")
	// ErrBadSignature marks a signature mismatch.
	ErrBadSignature = errors.New("slack request signature mismatch")
)

// ComputeSignature returns the v0 request signature for a body and timestamp.
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature authenticates one inbound request. The timestamp window is
// checked before any hashing so stale replays cost no crypto work. The final
// comparison is constant-time.
func VerifySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return ErrSigningSecretMissing
	}
	timestamp = strings.TrimSpace(timestamp)
	signature = strings.TrimSpace(signature)
	if timestamp == "" || signature == "" {
		return ErrBadSignature
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: unparseable timestamp %q", ErrStaleTimestamp, timestamp)
	}
	age := now.Sub(time.Unix(seconds, 0))
	if age > replayWindow || age < -replayWindow {
		return ErrStaleTimestamp
	}

	expected := ComputeSignature(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}
