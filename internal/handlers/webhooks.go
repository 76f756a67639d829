package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/omnibridge/omnibridge/internal/bridge"
	"github.com/omnibridge/omnibridge/internal/event"
)

// webhookAck is the immediate response body for accepted or ignored events.
type webhookAck struct {
	Status  string `json:"status,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func accepted() webhookAck {
	return webhookAck{Status: "accepted"}
}

func ignored(reason string) webhookAck {
	return webhookAck{Ignored: true, Reason: reason}
}

// WebhookHandler receives both platforms' webhook callbacks. Cheap checks
// decide ignore inline. The gateway direction runs synchronously so a desk
// send failure answers non-2xx and the gateway redelivers; desk replies are
// acked and handed to the pipeline.
type WebhookHandler struct {
	pipeline *bridge.Pipeline
	gateway  *bridge.GatewayInbound
	desk     *bridge.DeskInbound
	logger   *slog.Logger
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(pipeline *bridge.Pipeline, gw *bridge.GatewayInbound, dk *bridge.DeskInbound, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
		gateway:  gw,
		desk:     dk,
		logger:   log.With(slog.String("handler", "webhooks")),
	}
}

// Register mounts the webhook endpoints on the Echo instance.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/v1/webhooks/gateway", h.Gateway)
	e.POST("/v1/webhooks/desk", h.Desk)
}

// Gateway handles the messaging gateway's callbacks.
func (h *WebhookHandler) Gateway(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unreadable body"})
	}
	ev, err := event.ParseGatewayEvent(body)
	if err != nil {
		h.logger.Warn("undecodable gateway webhook", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid payload"})
	}
	if !ev.IsMessageCallback() {
		return c.JSON(http.StatusOK, ignored("non_message_event_"+ev.Type))
	}
	if ev.InstanceID == "" {
		return c.JSON(http.StatusOK, ignored("missing_instance_id"))
	}

	if err := h.gateway.Process(c.Request().Context(), ev); err != nil {
		h.logger.Error("gateway event processing failed", slog.Any("error", err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{Message: "forwarding failed"})
	}
	return c.JSON(http.StatusOK, accepted())
}

// Desk handles the agent desk's callbacks.
func (h *WebhookHandler) Desk(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "unreadable body"})
	}
	ev, err := event.ParseDeskEvent(body)
	if err != nil {
		h.logger.Warn("undecodable desk webhook", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid payload"})
	}
	if ev.Event != event.DeskMessageCreated {
		return c.JSON(http.StatusOK, ignored("not_message_created"))
	}
	if ev.MessageType != event.DeskOutgoing {
		return c.JSON(http.StatusOK, ignored("not_outgoing"))
	}
	if ev.Private {
		return c.JSON(http.StatusOK, ignored("private_message"))
	}

	if err := h.pipeline.Enqueue(c.Request().Context(), "desk_inbound", func(ctx context.Context) error {
		return h.desk.Process(ctx, ev)
	}); err != nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "busy, retry later"})
	}
	return c.JSON(http.StatusOK, accepted())
}
