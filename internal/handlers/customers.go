package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/omnibridge/omnibridge/internal/registry"
)

// CustomerHandler exposes customer registry lookups.
type CustomerHandler struct {
	lookup registry.Lookup
	logger *slog.Logger
}

// NewCustomerHandler creates the customer lookup handler.
func NewCustomerHandler(lookup registry.Lookup, log *slog.Logger) *CustomerHandler {
	return &CustomerHandler{
		lookup: lookup,
		logger: log.With(slog.String("handler", "customers")),
	}
}

// Register mounts GET /v1/customer on the Echo instance.
func (h *CustomerHandler) Register(e *echo.Echo) {
	e.GET("/v1/customer", h.Lookup)
}

// Lookup resolves a tax id to a customer record. An unknown id is a 200
// with found=false, not an error.
func (h *CustomerHandler) Lookup(c echo.Context) error {
	taxID := c.QueryParam("cnpj")
	if taxID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Message: "cnpj is required"})
	}
	customer, err := h.lookup.ByTaxID(c.Request().Context(), taxID)
	if err != nil {
		h.logger.Error("customer lookup failed", slog.Any("error", err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "lookup failed"})
	}
	return c.JSON(http.StatusOK, customer)
}
