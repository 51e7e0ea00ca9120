package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/akave-ai/meteringest/internal/response"
	"github.com/akave-ai/meteringest/internal/service"
)

// IngestHandler accepts device reports and serves stored ingestions.
type IngestHandler struct {
	Service *service.ReportService
}

// Ingest runs the request body through the service (POST /ingest and
// POST /ingest/:source). Without :source the envelope is detected.
func (h *IngestHandler) Ingest(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.Failure("read request body: "+err.Error()))
	}
	res, err := h.Service.Ingest(c.Request().Context(), c.Param("source"), body)
	return response.Ingested(c, res, err)
}

// GetIngestion returns one ingestion summary (GET /ingestions/:id).
func (h *IngestHandler) GetIngestion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "invalid ingestion id", err.Error())
	}
	ing, err := h.Service.Get(c.Request().Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		return response.NotFound(c, "ingestion not found", id.String())
	}
	if err != nil {
		return response.InternalError(c, "get ingestion failed", err.Error())
	}
	return response.OK(c, ing, "")
}

// ListIngestions returns the most recent ingestions (GET /ingestions?limit=n).
func (h *IngestHandler) ListIngestions(c echo.Context) error {
	limit := 0
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return response.BadRequest(c, "invalid limit", err.Error())
		}
		limit = n
	}
	list, err := h.Service.List(c.Request().Context(), limit)
	if err != nil {
		return response.InternalError(c, "list ingestions failed", err.Error())
	}
	return response.OK(c, map[string]any{"ingestions": list}, "")
}

// GetRawPayload returns the archived payload of an ingestion as received
// (GET /ingestions/:id/raw).
func (h *IngestHandler) GetRawPayload(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "invalid ingestion id", err.Error())
	}
	raw, err := h.Service.RawPayload(c.Request().Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNotArchived):
		return response.NotFound(c, "raw payload not found", err.Error())
	case errors.Is(err, service.ErrArchiveDisabled):
		return response.Error(c, http.StatusNotImplemented, "raw archive disabled", err.Error())
	case err != nil:
		return response.InternalError(c, "get raw payload failed", err.Error())
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	DB Pinger
}

func (h *HealthHandler) Health(c echo.Context) error {
	if h.DB != nil {
		if err := h.DB.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
