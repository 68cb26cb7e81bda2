package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsdeskhq/opsdesk/internal/org"
)

// ErrNotFound is returned when a conversation lookup misses.
var ErrNotFound = errors.New("conversation not found")

// ErrOutOfScope marks a top-level message that falls outside the
// organization's tracked thread and must be dropped without side effects.
var ErrOutOfScope = errors.New("message outside tracked thread scope")

// Store is the persistence surface the service needs.
type Store interface {
	// Upsert atomically creates the conversation for (org, thread) or
	// returns the existing one. Losing the insert race is not an error.
	Upsert(ctx context.Context, params UpsertParams) (Conversation, error)
	GetByID(ctx context.Context, id string) (Conversation, error)
	ListByOrg(ctx context.Context, orgID string) ([]Conversation, error)
	UpdateStatus(ctx context.Context, id, status string) (Conversation, error)
	MarkRead(ctx context.Context, id string) error
}

// Service resolves threads to conversations and serves the internal API.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// ResolveThread finds or creates the conversation for an inbound message.
//
// threadTS is the parent thread of the message, empty for top-level messages.
// A top-level message resolves against the organization's primary-thread
// setting: if it matches, it belongs to the primary conversation; if no
// primary thread is configured, the message starts its own conversation
// rooted at its own ts; otherwise it is out of scope and dropped.
// Product has not clarified whether the no-primary-thread branch should be
// narrower; the asymmetry is intentional until then.
func (s *Service) ResolveThread(ctx context.Context, o org.Organization, channelID, threadTS, messageTS, title string) (Conversation, error) {
	threadTS = strings.TrimSpace(threadTS)
	messageTS = strings.TrimSpace(messageTS)
	if messageTS == "" {
		return Conversation{}, fmt.Errorf("message ts is required")
	}

	if threadTS == "" {
		primary := o.PrimaryThreadTS()
		switch {
		case primary != "" && messageTS == primary:
			threadTS = primary
		case primary == "":
			// Direct-message style usage: every top-level message starts
			// its own thread, keyed by its own ts.
			threadTS = messageTS
		default:
			return Conversation{}, ErrOutOfScope
		}
	}

	conv, err := s.store.Upsert(ctx, UpsertParams{
		OrgID:          o.ID,
		SlackThreadTS:  threadTS,
		SlackChannelID: channelID,
		Title:          title,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("resolve thread %s: %w", threadTS, err)
	}
	return conv, nil
}

// Get returns one conversation by id.
func (s *Service) Get(ctx context.Context, id string) (Conversation, error) {
	return s.store.GetByID(ctx, id)
}

// ListByOrg returns the conversation list rows for an organization.
func (s *Service) ListByOrg(ctx context.Context, orgID string) ([]Conversation, error) {
	return s.store.ListByOrg(ctx, orgID)
}

// UpdateStatus moves a conversation to a new lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Conversation, error) {
	if !ValidStatus(status) {
		return Conversation{}, fmt.Errorf("invalid status %q", status)
	}
	return s.store.UpdateStatus(ctx, id, status)
}

// MarkRead resets the unread counter.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id)
}
