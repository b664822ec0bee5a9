// Package server exposes a ChatMesh over HTTP using echo.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/chatmesh"
	"github.com/hupe1980/chatmesh/logging"
)

// Options configures a Server.
type Options struct {
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// AccessLog enables echo's request logger middleware.
	AccessLog bool
	// WSQueueSize bounds the turns waiting behind the running one on a
	// websocket. Defaults to 16.
	WSQueueSize int
}

// Server serves the chat API.
type Server struct {
	mesh    *chatmesh.ChatMesh
	wsQueue int
	echo    *echo.Echo
	logger  logging.Logger
}

// New creates a server with routes registered.
func New(mesh *chatmesh.ChatMesh, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.WSQueueSize <= 0 {
		opts.WSQueueSize = 16
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{mesh: mesh, wsQueue: opts.WSQueueSize, echo: e, logger: opts.Logger}
	s.RegisterRoutes(e)
	return s
}

// RegisterRoutes registers the chat routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.POST("/chat", s.Chat)
	e.GET("/chat/ws", s.ChatWS)
	e.POST("/chat/call", s.Call)
	e.GET("/chat/sessions/:thread_id", s.GetSession)
	e.DELETE("/chat/sessions/:thread_id", s.DeleteSession)
	e.GET("/chat/models", s.ListModels)
	e.POST("/chat/models/update", s.UpdateModels)
	e.GET("/health", s.Health)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP server listening", "address", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}
