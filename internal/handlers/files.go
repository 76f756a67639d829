package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// FilesHandler answers for the retired local media proxy. Media now lives
// on object storage; old proxied links are permanently gone.
type FilesHandler struct{}

// NewFilesHandler creates the retired file proxy handler.
func NewFilesHandler() *FilesHandler {
	return &FilesHandler{}
}

// Register mounts GET /v1/files/:id on the Echo instance.
func (h *FilesHandler) Register(e *echo.Echo) {
	e.GET("/v1/files/:id", h.Get)
}

// Get always returns 410 Gone.
func (h *FilesHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusGone, ErrorResponse{Message: "file proxy retired, media is served from object storage"})
}
