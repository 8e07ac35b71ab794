// Package api provides the HTTP surface for the gatekeeper pipeline:
// the chat endpoint (buffered and streaming), the out-of-band
// acknowledgment/crisis-resolution endpoints, data-subject export and
// delete, and health/metrics.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/lensguard/gatekeeper/pkg/config"
	"github.com/lensguard/gatekeeper/pkg/metrics"
	"github.com/lensguard/gatekeeper/pkg/pipeline"
	"github.com/lensguard/gatekeeper/pkg/ratelimit"
	"github.com/lensguard/gatekeeper/pkg/retention"
	"github.com/lensguard/gatekeeper/pkg/shield"
	"github.com/lensguard/gatekeeper/pkg/version"
)

// Server is the HTTP API server fronting the pipeline executor.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg          *config.Config
	executor     *pipeline.Executor
	limiter      *ratelimit.Limiter
	shieldEngine *shield.Engine
	dataSubject  *retention.DataSubjectHandler
}

// NewServer wires routes against the pipeline executor and its
// supporting components and returns a ready-to-start Server.
func NewServer(cfg *config.Config, executor *pipeline.Executor, limiter *ratelimit.Limiter, shieldEngine *shield.Engine, dataSubject *retention.DataSubjectHandler) *Server {
	e := echo.New()

	s := &Server{
		echo:         e,
		cfg:          cfg,
		executor:     executor,
		limiter:      limiter,
		shieldEngine: shieldEngine,
		dataSubject:  dataSubject,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Caps request bodies well above any realistic chat message while
	// still rejecting multi-MB payloads before they reach JSON decoding.
	s.echo.Use(middleware.BodyLimit(256 * 1024))
	s.echo.Use(middleware.Recover())
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.chatHandler)
	v1.POST("/chat/stream", s.chatStreamHandler)
	v1.POST("/ack", s.ackHandler)
	v1.POST("/crisis/:userId/resolve", s.resolveCrisisHandler)
	v1.GET("/data-subject/:userId/export", s.dataSubjectExportHandler)
	v1.DELETE("/data-subject/:userId", s.dataSubjectDeleteHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	stats := s.cfg.Stats()
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": version.Full(),
		"configuration": map[string]any{
			"providers":      stats.Providers,
			"scheduled_jobs": stats.Jobs,
			"kvstore_backend": stats.Backend,
		},
	})
}
