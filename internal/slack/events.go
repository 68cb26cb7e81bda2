package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload marks an event body that is not valid JSON.
var ErrMalformedPayload = errors.New("malformed slack event payload")

// Envelope types Slack delivers to the events endpoint.
const (
	envelopeURLVerification = "url_verification"
	envelopeEventCallback   = "event_callback"
)

// Message subtypes that represent mutations of platform-side history rather
// than net-new messages.
const (
	SubtypeMessageChanged = "message_changed"
	SubtypeMessageDeleted = "message_deleted"
)

// Kind discriminates classified events.
type Kind string

const (
	KindURLVerification Kind = "url_verification"
	KindMessage         Kind = "message"
	KindIgnored         Kind = "ignored"
)

// EventMetadata is the structured metadata block Slack round-trips on
// messages posted with one attached. It is used only for echo correlation,
// never for authorization.
type EventMetadata struct {
	EventType    string         `json:"event_type"`
	EventPayload map[string]any `json:"event_payload,omitempty"`
}

// MessageEvent is a normalized inbound channel/thread message.
type MessageEvent struct {
	ChannelID string
	TS        string
	ThreadTS  string
	UserID    string
	Text      string
	Subtype   string
	IsBot     bool
	BotName   string
	Metadata  *EventMetadata
}

// Classified is the result of parsing one verified (or exempt) payload.
type Classified struct {
	Kind      Kind
	Challenge string
	Message   MessageEvent
}

type eventEnvelope struct {
	Type      string        `json:"type"`
	Challenge string        `json:"challenge"`
	Event     *innerMessage `json:"event"`
}

type innerMessage struct {
	Type       string         `json:"type"`
	Subtype    string         `json:"subtype"`
	Channel    string         `json:"channel"`
	TS         string         `json:"ts"`
	ThreadTS   string         `json:"thread_ts"`
	User       string         `json:"user"`
	BotID      string         `json:"bot_id"`
	BotProfile *botProfile    `json:"bot_profile"`
	Text       string         `json:"text"`
	Metadata   *EventMetadata `json:"metadata"`
}

type botProfile struct {
	Name string `json:"name"`
}

// IsURLVerification peeks at a raw payload for the handshake envelope. The
// handshake is exempt from signature verification by Slack's contract, so
// this check runs before the verifier.
func IsURLVerification(payload []byte) bool {
	var fuzzy struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &fuzzy); err != nil {
		return false
	}
	return strings.TrimSpace(fuzzy.Type) == envelopeURLVerification
}

// Classify parses one event payload into a typed internal event. It is pure
// parsing; the only failure mode is malformed JSON.
func Classify(payload []byte) (Classified, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Classified{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch envelope.Type {
	case envelopeURLVerification:
		return Classified{Kind: KindURLVerification, Challenge: envelope.Challenge}, nil
	case envelopeEventCallback:
	default:
		return Classified{Kind: KindIgnored}, nil
	}

	inner := envelope.Event
	if inner == nil || inner.Type != "message" {
		return Classified{Kind: KindIgnored}, nil
	}

	ev := MessageEvent{
		ChannelID: strings.TrimSpace(inner.Channel),
		TS:        strings.TrimSpace(inner.TS),
		ThreadTS:  strings.TrimSpace(inner.ThreadTS),
		UserID:    strings.TrimSpace(inner.User),
		Text:      inner.Text,
		Subtype:   strings.TrimSpace(inner.Subtype),
		IsBot:     strings.TrimSpace(inner.BotID) != "",
		Metadata:  inner.Metadata,
	}
	if inner.BotProfile != nil {
		ev.BotName = strings.TrimSpace(inner.BotProfile.Name)
	}
	return Classified{Kind: KindMessage, Message: ev}, nil
}
