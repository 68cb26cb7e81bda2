// Package message persists chat messages and the conversation roll-up that
// accompanies each insert.
package message

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Sender classification constants.
const (
	SenderInternal = "internal"
	SenderExternal = "external"
	SenderSystem   = "system"
)

// Message is one ingested or sent chat message. Rows are immutable once
// created; Slack's per-channel ts doubles as ordering and idempotency key.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	OrgID          string    `json:"org_id"`
	SlackChannelID string    `json:"slack_channel_id"`
	SlackTS        string    `json:"slack_ts"`
	SlackThreadTS  string    `json:"slack_thread_ts,omitempty"`
	SenderKind     string    `json:"sender_kind"`
	SenderName     string    `json:"sender_name,omitempty"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// IngestParams is the input for persisting one message.
type IngestParams struct {
	ConversationID string
	OrgID          string
	SlackChannelID string
	SlackTS        string
	SlackThreadTS  string
	SenderKind     string
	SenderName     string
	SenderAvatar   string
	Body           string
}

const previewMaxBytes = 280

// Preview returns the denormalized last-message preview for a body,
// truncated on a rune boundary.
func Preview(body string) string {
	body = strings.TrimSpace(body)
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[:idx]
	}
	if len(body) <= previewMaxBytes {
		return body
	}
	cut := previewMaxBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
