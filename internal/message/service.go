package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrDuplicate signals that a message with the same (channel, ts) already
// exists. Redelivered webhook events hit this path; it is not a failure.
var ErrDuplicate = errors.New("message already persisted")

// Store is the persistence surface the service needs. InsertIfAbsent must
// write the message row and the owning conversation's denormalized fields in
// one transaction.
type Store interface {
	InsertIfAbsent(ctx context.Context, params IngestParams) (Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]Message, error)
}

// Service persists messages for resolved conversations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "message")),
	}
}

// Ingest persists one message, or returns ErrDuplicate when the same
// (channel, ts) was already written by an earlier delivery.
func (s *Service) Ingest(ctx context.Context, params IngestParams) (Message, error) {
	if strings.TrimSpace(params.SlackTS) == "" {
		return Message{}, fmt.Errorf("slack ts is required")
	}
	if strings.TrimSpace(params.ConversationID) == "" {
		return Message{}, fmt.Errorf("conversation id is required")
	}
	switch params.SenderKind {
	case SenderInternal, SenderExternal, SenderSystem:
	default:
		return Message{}, fmt.Errorf("unknown sender kind %q", params.SenderKind)
	}

	msg, err := s.store.InsertIfAbsent(ctx, params)
	if errors.Is(err, ErrDuplicate) {
		s.logger.Debug("duplicate delivery skipped",
			slog.String("channel_id", params.SlackChannelID),
			slog.String("ts", params.SlackTS),
		)
		return Message{}, ErrDuplicate
	}
	if err != nil {
		return Message{}, fmt.Errorf("ingest message %s: %w", params.SlackTS, err)
	}
	return msg, nil
}

// ListByConversation returns a conversation's messages ordered by slack ts.
func (s *Service) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	return s.store.ListByConversation(ctx, conversationID)
}
