// Package org defines the organization tenant model and channel resolution.
package org

import (
	"fmt"
	"strings"
	"time"
)

// Settings keys recognized by the conversation sync engine. Organizations are
// created and configured by administrative flows; this service only reads them.
const (
	SettingSlackChannelID = "slack_channel_id"
	SettingSlackThreadTS  = "slack_thread_ts"
)

// Organization is the tenant boundary for conversations and messages.
type Organization struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Setting returns the trimmed string value for a settings key, or empty
// string when absent or not a string-like value.
func (o Organization) Setting(key string) string {
	if o.Settings == nil {
		return ""
	}
	raw, ok := o.Settings[key]
	if !ok || raw == nil {
		return ""
	}
	if value, ok := raw.(string); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

// SlackChannelID returns the bound Slack channel, if any.
func (o Organization) SlackChannelID() string {
	return o.Setting(SettingSlackChannelID)
}

// PrimaryThreadTS returns the configured primary thread, if any. When set,
// top-level channel traffic outside this thread is not tracked.
func (o Organization) PrimaryThreadTS() string {
	return o.Setting(SettingSlackThreadTS)
}
