package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/opsdeskhq/opsdesk/internal/auth"
	"github.com/opsdeskhq/opsdesk/internal/conversation"
	"github.com/opsdeskhq/opsdesk/internal/message"
	"github.com/opsdeskhq/opsdesk/internal/slack"
)

var validate = validator.New()

// ReplySender posts operator replies to the external platform.
type ReplySender interface {
	Send(ctx context.Context, req slack.SendRequest) (string, error)
}

// ConversationsHandler serves the operator-facing conversation API.
type ConversationsHandler struct {
	conversations *conversation.Service
	messages      *message.Service
	sender        ReplySender
	logger        *slog.Logger
}

// NewConversationsHandler creates a ConversationsHandler.
func NewConversationsHandler(log *slog.Logger, conversations *conversation.Service, messages *message.Service, sender ReplySender) *ConversationsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationsHandler{
		conversations: conversations,
		messages:      messages,
		sender:        sender,
		logger:        log.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	e.GET("/orgs/:id/conversations", h.ListByOrg)

	group := e.Group("/conversations/:id")
	group.GET("/messages", h.ListMessages)
	group.POST("/reply", h.Reply)
	group.POST("/read", h.MarkRead)
	group.PUT("/status", h.UpdateStatus)
}

type listConversationsResponse struct {
	Items []conversation.Conversation `json:"items"`
}

type listMessagesResponse struct {
	Items []message.Message `json:"items"`
}

type replyRequest struct {
	Text string `json:"text" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListByOrg returns an organization's conversation list rows.
func (h *ConversationsHandler) ListByOrg(c echo.Context) error {
	orgID := strings.TrimSpace(c.Param("id"))
	if orgID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "org id is required")
	}
	items, err := h.conversations.ListByOrg(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listConversationsResponse{Items: items})
}

// ListMessages returns a conversation's messages in thread order.
func (h *ConversationsHandler) ListMessages(c echo.Context) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}
	items, err := h.messages.ListByConversation(c.Request().Context(), conv.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listMessagesResponse{Items: items})
}

// Reply posts an operator reply into the conversation's Slack thread and
// persists it under the platform-assigned ts. Failed sends are surfaced to
// the operator; there is no automatic retry.
func (h *ConversationsHandler) Reply(c echo.Context) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}
	var req replyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	ts, err := h.sender.Send(ctx, slack.SendRequest{
		ChannelID: conv.SlackChannelID,
		ThreadTS:  conv.SlackThreadTS,
		Text:      req.Text,
		ActorID:   actor.AccountID,
		OrgID:     conv.OrgID,
	})
	if err != nil {
		var sendErr *slack.SendError
		if errors.As(err, &sendErr) {
			return echo.NewHTTPError(http.StatusBadGateway, sendErr.Detail)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	msg, err := h.messages.Ingest(ctx, message.IngestParams{
		ConversationID: conv.ID,
		OrgID:          conv.OrgID,
		SlackChannelID: conv.SlackChannelID,
		SlackTS:        ts,
		SlackThreadTS:  conv.SlackThreadTS,
		SenderKind:     message.SenderInternal,
		SenderName:     actor.DisplayName,
		Body:           req.Text,
	})
	if errors.Is(err, message.ErrDuplicate) {
		// The webhook echo of this send was ingested first. The reply is
		// on the thread either way.
		h.logger.Debug("reply already persisted via webhook echo",
			slog.String("conversation_id", conv.ID),
			slog.String("ts", ts),
		)
		return c.JSON(http.StatusCreated, message.Message{
			ConversationID: conv.ID,
			OrgID:          conv.OrgID,
			SlackChannelID: conv.SlackChannelID,
			SlackTS:        ts,
			SlackThreadTS:  conv.SlackThreadTS,
			SenderKind:     message.SenderInternal,
			SenderName:     actor.DisplayName,
			Body:           req.Text,
		})
	}
	if err != nil {
		// The message is on Slack but not in our store; the next webhook
		// redelivery will not recover it because our own echoes are dropped.
		h.logger.Error("reply sent but not persisted",
			slog.String("conversation_id", conv.ID),
			slog.String("ts", ts),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead resets the conversation's unread counter.
func (h *ConversationsHandler) MarkRead(c echo.Context) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}
	if err := h.conversations.MarkRead(c.Request().Context(), conv.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateStatus moves the conversation to a new lifecycle status.
func (h *ConversationsHandler) UpdateStatus(c echo.Context) error {
	conv, err := h.getConversation(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !conversation.ValidStatus(req.Status) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	updated, err := h.conversations.UpdateStatus(c.Request().Context(), conv.ID, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *ConversationsHandler) getConversation(c echo.Context) (conversation.Conversation, error) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return conversation.Conversation{}, echo.NewHTTPError(http.StatusBadRequest, "conversation id is required")
	}
	conv, err := h.conversations.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return conversation.Conversation{}, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return conversation.Conversation{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return conv, nil
}
