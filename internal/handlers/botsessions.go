package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/omnibridge/omnibridge/internal/botsession"
)

// BotSessionHandler exposes the intake session API.
type BotSessionHandler struct {
	sessions *botsession.Service
	logger   *slog.Logger
}

// NewBotSessionHandler creates the intake session handler.
func NewBotSessionHandler(sessions *botsession.Service, log *slog.Logger) *BotSessionHandler {
	return &BotSessionHandler{
		sessions: sessions,
		logger:   log.With(slog.String("handler", "bot_sessions")),
	}
}

// Register mounts the intake session endpoints on the Echo instance.
func (h *BotSessionHandler) Register(e *echo.Echo) {
	e.GET("/v1/bot_sessions/active", h.GetActive)
	e.POST("/v1/bot_sessions", h.Create)
}

// GetActive returns the active intake session for a conversation, or 404.
func (h *BotSessionHandler) GetActive(c echo.Context) error {
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "conversation_id is required"})
	}
	sess, ok := h.sessions.GetActive(c.Request().Context(), conversationID)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Message: "no active session"})
	}
	return c.JSON(http.StatusOK, sess)
}

// Create starts an intake session, or returns the already active one.
func (h *BotSessionHandler) Create(c echo.Context) error {
	var params botsession.CreateParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid payload"})
	}
	if params.ConversationID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "conversation_id is required"})
	}
	sess, err := h.sessions.Create(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("failed to create intake session", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "failed to create session"})
	}
	return c.JSON(http.StatusOK, sess)
}
