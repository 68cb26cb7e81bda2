// Package inbound orchestrates the webhook ingestion pipeline: origin
// filtering, organization resolution, thread resolution, and persistence.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsdeskhq/opsdesk/internal/conversation"
	"github.com/opsdeskhq/opsdesk/internal/message"
	"github.com/opsdeskhq/opsdesk/internal/org"
	"github.com/opsdeskhq/opsdesk/internal/slack"
)

// Outcome describes how one message event was handled. Every outcome except
// a processing error still yields a prompt 200 at the HTTP boundary.
type Outcome string

const (
	OutcomeIngested        Outcome = "ingested"
	OutcomeDroppedMutation Outcome = "dropped_mutation"
	OutcomeDroppedEcho     Outcome = "dropped_echo"
	OutcomeUnmappedChannel Outcome = "unmapped_channel"
	OutcomeOutOfScope      Outcome = "out_of_scope"
	OutcomeDuplicate       Outcome = "duplicate"
)

type orgResolver interface {
	ResolveByChannel(ctx context.Context, channelID string) (org.Organization, error)
}

type threadResolver interface {
	ResolveThread(ctx context.Context, o org.Organization, channelID, threadTS, messageTS, title string) (conversation.Conversation, error)
}

type ingester interface {
	Ingest(ctx context.Context, params message.IngestParams) (message.Message, error)
}

type profileResolver interface {
	UserProfile(ctx context.Context, userID string) (slack.Profile, error)
}

// Processor runs the ingestion pipeline for classified message events.
type Processor struct {
	logger        *slog.Logger
	filter        *slack.OriginFilter
	orgs          orgResolver
	conversations threadResolver
	messages      ingester
	profiles      profileResolver
}

// NewProcessor creates an inbound processor.
func NewProcessor(log *slog.Logger, filter *slack.OriginFilter, orgs orgResolver, conversations threadResolver, messages ingester, profiles profileResolver) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		logger:        log.With(slog.String("service", "inbound")),
		filter:        filter,
		orgs:          orgs,
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
	}
}

// Process runs one message event through the pipeline and reports the
// outcome. No in-process state is shared between calls; idempotency under
// concurrent deliveries comes from the storage uniqueness constraints.
func (p *Processor) Process(ctx context.Context, ev slack.MessageEvent) (Outcome, error) {
	if verdict := p.filter.Evaluate(ev); verdict.Drop() {
		if verdict == slack.VerdictDropMutation {
			return OutcomeDroppedMutation, nil
		}
		return OutcomeDroppedEcho, nil
	}

	o, err := p.orgs.ResolveByChannel(ctx, ev.ChannelID)
	if errors.Is(err, org.ErrNotFound) {
		// Steady-state condition: traffic in channels no organization is
		// bound to. Not an error.
		return OutcomeUnmappedChannel, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve organization: %w", err)
	}

	conv, err := p.conversations.ResolveThread(ctx, o, ev.ChannelID, ev.ThreadTS, ev.TS, message.Preview(ev.Text))
	if errors.Is(err, conversation.ErrOutOfScope) {
		return OutcomeOutOfScope, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}

	senderKind := message.SenderExternal
	senderName := ""
	senderAvatar := ""
	if ev.IsBot {
		senderKind = message.SenderSystem
		senderName = ev.BotName
	} else if p.profiles != nil && ev.UserID != "" {
		profile, err := p.profiles.UserProfile(ctx, ev.UserID)
		if err != nil {
			p.logger.Warn("sender profile lookup failed",
				slog.String("user_id", ev.UserID),
				slog.Any("error", err),
			)
		} else {
			senderName = profile.DisplayName
			senderAvatar = profile.AvatarURL
		}
	}

	_, err = p.messages.Ingest(ctx, message.IngestParams{
		ConversationID: conv.ID,
		OrgID:          o.ID,
		SlackChannelID: ev.ChannelID,
		SlackTS:        ev.TS,
		SlackThreadTS:  ev.ThreadTS,
		SenderKind:     senderKind,
		SenderName:     senderName,
		SenderAvatar:   senderAvatar,
		Body:           ev.Text,
	})
	if errors.Is(err, message.ErrDuplicate) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("ingest message: %w", err)
	}
	return OutcomeIngested, nil
}

// HandleMessage implements the webhook handler's sink interface.
func (p *Processor) HandleMessage(ctx context.Context, ev slack.MessageEvent) error {
	outcome, err := p.Process(ctx, ev)
	if err != nil {
		return err
	}
	p.logger.Info("message event processed",
		slog.String("outcome", string(outcome)),
		slog.String("channel_id", ev.ChannelID),
		slog.String("ts", ev.TS),
	)
	return nil
}
