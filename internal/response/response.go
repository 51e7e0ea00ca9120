package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/meteringest/internal/infrastructure/inputs"
	"github.com/akave-ai/meteringest/internal/ingest"
	"github.com/akave-ai/meteringest/internal/service"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body returned for every ingestion attempt, over HTTP and Lambda alike.
type Envelope struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	IngestionID   string `json:"ingestion_id,omitempty"`
	Source        string `json:"source,omitempty"`
	ProcessedData any    `json:"processed_data,omitempty"`
	Error         string `json:"error,omitempty"`
}

// APIResponse is the standard success response shape of the read endpoints.
type APIResponse struct {
	Data    any    `json:"data"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path"`
}

// APIError is the standard error response shape of the read endpoints.
type APIError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Path    string `json:"path"`
	Status  int    `json:"status"`
}

// Now stamps envelopes. Tests replace it.
var Now = time.Now

func timestamp() string {
	return Now().UTC().Format(time.RFC3339)
}

// FromIngest turns the outcome of service.ReportService.Ingest into an HTTP
// status and envelope. Decode and validation failures are the client's
// (400); anything else is ours (500) and its detail is not exposed.
func FromIngest(res *service.Result, err error) (int, Envelope) {
	if err == nil {
		return http.StatusOK, Envelope{
			Status:        StatusSuccess,
			Timestamp:     timestamp(),
			IngestionID:   res.IngestionID.String(),
			Source:        res.Source,
			ProcessedData: res.Report,
		}
	}
	var ingestErr *ingest.IngestError
	switch {
	case errors.As(err, &ingestErr),
		errors.Is(err, inputs.ErrInvalidPayload),
		errors.Is(err, inputs.ErrUnknownInput):
		return http.StatusBadRequest, Failure(err.Error())
	default:
		return http.StatusInternalServerError, Failure("internal error while storing the report")
	}
}

// Failure builds an error envelope.
func Failure(msg string) Envelope {
	return Envelope{Status: StatusError, Timestamp: timestamp(), Error: msg}
}

// pathFromContext returns the request path from Echo context.
func pathFromContext(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().URL.Path
}

// Ingested sends the envelope for an ingestion attempt.
func Ingested(c echo.Context, res *service.Result, err error) error {
	status, env := FromIngest(res, err)
	return c.JSON(status, env)
}

// OK sends a 200 response with data.
func OK(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Data:    data,
		Status:  http.StatusOK,
		Message: message,
		Path:    pathFromContext(c),
	})
}

// Error sends a JSON error response using APIError.
func Error(c echo.Context, status int, message, errDetail string) error {
	return c.JSON(status, APIError{
		Message: message,
		Error:   errDetail,
		Path:    pathFromContext(c),
		Status:  status,
	})
}

// BadRequest sends 400 with message and error detail.
func BadRequest(c echo.Context, message, errDetail string) error {
	return Error(c, http.StatusBadRequest, message, errDetail)
}

// NotFound sends 404 with message and error detail.
func NotFound(c echo.Context, message, errDetail string) error {
	return Error(c, http.StatusNotFound, message, errDetail)
}

// InternalError sends 500 with message and error detail.
func InternalError(c echo.Context, message, errDetail string) error {
	return Error(c, http.StatusInternalServerError, message, errDetail)
}
