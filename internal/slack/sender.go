package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"
)

// MetadataEventType tags outbound messages so the origin filter can
// recognize their webhook echoes.
const MetadataEventType = "opsdesk_reply"

// API is the subset of the Slack web API the sender uses.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	GetUserProfileContext(ctx context.Context, params *slackapi.GetUserProfileParameters) (*slackapi.UserProfile, error)
}

// NewClient creates the Slack web API client for a bot token.
func NewClient(token string) *slackapi.Client {
	return slackapi.New(token)
}

// SendRequest is the input for posting one reply.
type SendRequest struct {
	ChannelID string
	ThreadTS  string
	Text      string
	ActorID   string
	OrgID     string
}

// SendError is a typed outbound failure carrying Slack's error detail.
// The sender never retries; retry policy belongs to the caller.
type SendError struct {
	Detail string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("slack send failed: %s", e.Detail)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Profile is a sender's display profile from the external platform.
type Profile struct {
	DisplayName string
	AvatarURL   string
}

// Sender posts replies to Slack on behalf of internal actors.
type Sender struct {
	client API
	logger *slog.Logger
}

// NewSender creates an outbound sender.
func NewSender(log *slog.Logger, client API) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		client: client,
		logger: log.With(slog.String("service", "slack_sender")),
	}
}

// Send posts one message and returns the Slack-assigned ts, the canonical
// ordering key if the message is later echoed back via webhook. The attached
// metadata block is what the origin filter matches on.
func (s *Sender) Send(ctx context.Context, req SendRequest) (string, error) {
	if strings.TrimSpace(req.ChannelID) == "" {
		return "", &SendError{Detail: "channel id is required"}
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", &SendError{Detail: "message text is required"}
	}

	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(req.Text, false),
		slackapi.MsgOptionMetadata(slackapi.SlackMetadata{
			EventType: MetadataEventType,
			EventPayload: map[string]interface{}{
				"actor_id": req.ActorID,
				"org_id":   req.OrgID,
			},
		}),
	}
	if strings.TrimSpace(req.ThreadTS) != "" {
		options = append(options, slackapi.MsgOptionTS(req.ThreadTS))
	}

	_, ts, err := s.client.PostMessageContext(ctx, req.ChannelID, options...)
	if err != nil {
		s.logger.Warn("post message failed",
			slog.String("channel_id", req.ChannelID),
			slog.Any("error", err),
		)
		return "", &SendError{Detail: err.Error(), Err: err}
	}
	return ts, nil
}

// UserProfile fetches a Slack user's display profile for sender enrichment.
func (s *Sender) UserProfile(ctx context.Context, userID string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, fmt.Errorf("user id is required")
	}
	profile, err := s.client.GetUserProfileContext(ctx, &slackapi.GetUserProfileParameters{UserID: userID})
	if err != nil {
		return Profile{}, fmt.Errorf("get user profile %s: %w", userID, err)
	}
	name := strings.TrimSpace(profile.DisplayNameNormalized)
	if name == "" {
		name = strings.TrimSpace(profile.RealName)
	}
	return Profile{
		DisplayName: name,
		AvatarURL:   profile.Image192,
	}, nil
}
