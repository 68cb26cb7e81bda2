package slack

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Signature headers on Slack event deliveries.
const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// MessageSink consumes classified message events. Expected no-op conditions
// (dropped echo, unmapped channel, duplicate) are not errors; the sink logs
// them and returns nil so the handler can acknowledge promptly.
type MessageSink interface {
	HandleMessage(ctx context.Context, ev MessageEvent) error
}

// WebhookHandler receives Slack event-subscription callbacks.
type WebhookHandler struct {
	logger        *slog.Logger
	signingSecret string
	sink          MessageSink
	now           func() time.Time
}

// NewWebhookHandler creates the public events endpoint handler.
func NewWebhookHandler(log *slog.Logger, signingSecret string, sink MessageSink) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:        log.With(slog.String("handler", "slack_webhook")),
		signingSecret: signingSecret,
		sink:          sink,
		now:           time.Now,
	}
}

// Register registers the events endpoint routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/slack/events", h.HandleProbe)
	e.POST("/slack/events", h.Handle)
}

// HandleProbe responds to liveness probes on the events URL.
func (h *WebhookHandler) HandleProbe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handle processes one event delivery. Slack redelivers on any missing or
// slow response, so everything past authentication and parsing answers
// 200 ok, including ignored, dropped, and deduplicated events; unexpected
// ingestion errors are logged rather than surfaced as 5xx.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.sink == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "slack webhook sink not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	// The URL verification handshake is exempt from signature verification
	// and bypasses the pipeline entirely.
	if IsURLVerification(payload) {
		classified, err := Classify(payload)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]string{"challenge": classified.Challenge})
	}

	signature := c.Request().Header.Get(HeaderSignature)
	timestamp := c.Request().Header.Get(HeaderTimestamp)
	if err := VerifySignature(h.signingSecret, timestamp, signature, payload, h.now()); err != nil {
		h.logger.Warn("signature verification failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid request signature")
	}

	classified, err := Classify(payload)
	if err != nil {
		h.logger.Warn("malformed event payload", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch classified.Kind {
	case KindMessage:
		if err := h.sink.HandleMessage(context.WithoutCancel(c.Request().Context()), classified.Message); err != nil {
			// A 5xx here would trigger Slack's retry storm for an event we
			// already consumed; log and acknowledge instead.
			h.logger.Error("inbound message handling failed",
				slog.String("channel_id", classified.Message.ChannelID),
				slog.String("ts", classified.Message.TS),
				slog.Any("error", err),
			)
		}
	case KindIgnored:
		h.logger.Debug("ignored event type")
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}
