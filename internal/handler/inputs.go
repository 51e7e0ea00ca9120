package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
)

// InputHandler describes the envelopes accepted on /ingest (GET /inputs/types).
type InputHandler struct {
	Registry *inputs.Registry
}

// ListTypes returns registered input type names in detection order (GET /inputs/types).
func (h *InputHandler) ListTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"types": h.Registry.ListRegistered()})
}

// GetAllTypesInfo returns the description of every input type (GET /inputs/info).
func (h *InputHandler) GetAllTypesInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"types": h.Registry.AllTypesInfo()})
}

// GetTypeInfo returns the description of one input type (GET /inputs/types/:type).
func (h *InputHandler) GetTypeInfo(c echo.Context) error {
	typeName := c.Param("type")
	if typeName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing type in path"})
	}
	info, ok := h.Registry.GetTypeInfo(typeName)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown input type: " + typeName})
	}
	return c.JSON(http.StatusOK, info)
}
