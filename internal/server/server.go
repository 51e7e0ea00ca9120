package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/akave-ai/meteringest/internal/config"
	"github.com/akave-ai/meteringest/internal/handler"
	"github.com/akave-ai/meteringest/internal/observability"
	"github.com/akave-ai/meteringest/internal/service"
)

const defaultBodyLimit = "2M"

// Server holds the Echo app and dependencies.
type Server struct {
	Echo   *echo.Echo
	Config *config.Config
	log    zerolog.Logger
}

// New builds the Echo server and registers routes. db may be nil, in which
// case /healthz does not check the database.
func New(cfg *config.Config, svc *service.ReportService, recorder *observability.Recorder, db handler.Pinger, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit == "" {
		bodyLimit = defaultBodyLimit
	}
	e.Use(
		middleware.Recover(),
		middleware.RequestID(),
		requestLogger(log),
		middleware.BodyLimit(bodyLimit),
	)
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSAllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}

	ingestHandler := &handler.IngestHandler{Service: svc}
	inputHandler := &handler.InputHandler{Registry: svc.Inputs()}
	healthHandler := &handler.HealthHandler{DB: db}

	e.POST("/ingest", ingestHandler.Ingest)
	e.POST("/ingest/:source", ingestHandler.Ingest)
	e.GET("/ingestions", ingestHandler.ListIngestions)
	e.GET("/ingestions/:id", ingestHandler.GetIngestion)
	e.GET("/ingestions/:id/raw", ingestHandler.GetRawPayload)

	e.GET("/inputs/types", inputHandler.ListTypes)
	e.GET("/inputs/types/:type", inputHandler.GetTypeInfo)
	e.GET("/inputs/info", inputHandler.GetAllTypesInfo)

	e.GET("/healthz", healthHandler.Health)
	if recorder != nil {
		path := "/metrics"
		if cfg.Observability != nil && cfg.Observability.Metrics.Path != "" {
			path = cfg.Observability.Metrics.Path
		}
		if cfg.Observability == nil || cfg.Observability.Metrics.Enabled {
			e.GET(path, echo.WrapHandler(recorder.Handler()))
		}
	}

	log.Info().Strs("inputs", svc.Inputs().ListRegistered()).Msg("routes registered")
	return &Server{Echo: e, Config: cfg, log: log}
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// Start starts the HTTP server. Blocks until the context is cancelled or the server fails.
// On context cancel, Shutdown is called so in-flight requests can finish.
func (s *Server) Start(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("shutdown")
		}
	}()
	addr := ":" + s.Config.Server.Port
	s.log.Info().Str("addr", addr).Msg("listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
