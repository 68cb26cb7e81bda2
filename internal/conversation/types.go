// Package conversation defines the internal representation of one Slack
// thread and the resolution rules that bind inbound messages to it.
package conversation

import "time"

// Lifecycle status constants.
const (
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusArchived = "archived"
)

// ValidStatus reports whether a status value is one of the known states.
func ValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusPending, StatusResolved, StatusArchived:
		return true
	default:
		return false
	}
}

// Conversation is one tracked discussion thread, scoped to an organization.
// At most one row exists per (org, slack_thread_ts); the store enforces this
// with a unique index and the resolver treats a lost insert race as a
// normal re-read.
type Conversation struct {
	ID              string     `json:"id"`
	OrgID           string     `json:"org_id"`
	SlackThreadTS   string     `json:"slack_thread_ts"`
	SlackChannelID  string     `json:"slack_channel_id"`
	Title           string     `json:"title,omitempty"`
	Status          string     `json:"status"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastSenderName  string     `json:"last_sender_name,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	MessageCount    int        `json:"message_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// UpsertParams are the defaults applied when the resolver creates a
// conversation on first sight of a thread.
type UpsertParams struct {
	OrgID          string
	SlackThreadTS  string
	SlackChannelID string
	Title          string
}
