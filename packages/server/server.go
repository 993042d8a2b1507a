// Package server is a local multipart receiver for trying uploads out.
//
// Every POST or PUT is parsed as a streaming multipart body. File parts are
// hashed while they are read and, when a save directory is configured,
// written to disk. The reply is a JSON description of what arrived, which
// makes it a convenient target for --expect checks.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitupload/packages/logger"
)

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultMaxBodySize = 512 << 20
	shutdownTimeout    = 5 * time.Second
)

// Config holds receiver settings.
type Config struct {
	Addr        string
	SaveDir     string
	MaxBodySize int64
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("server.addr must be host:port (got: %s)", c.Addr)
	}
	if c.MaxBodySize < 0 {
		return fmt.Errorf("server.max_body_size must be non-negative (got: %d)", c.MaxBodySize)
	}
	return nil
}

// Server wraps a gin engine and the http.Server that serves it.
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	log        zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	received int64
}

// New builds a receiver. Routes are registered immediately.
func New(cfg Config, log zerolog.Logger) *Server {
	cfg.ApplyDefaults()

	if log.GetLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		engine: gin.New(),
		log:    logger.WithComponent(log, "server"),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger(), bodySizeLimit(cfg.MaxBodySize))
	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.NoRoute(func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			s.receive(c)
		default:
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "send a multipart POST or PUT"})
		}
	})
}

// Handler returns the engine for mounting in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background. It returns
// once the port is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server error")
		}
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("receiver started")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Received returns how many uploads have been accepted.
func (s *Server) Received() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Stop shuts the server down, waiting briefly for in-flight uploads.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info().Msg("receiver stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"received":  s.Received(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := s.log.Info()
		switch {
		case status >= 500:
			ev = s.log.Error()
		case status >= 400:
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("proto", c.Request.Proto).
			Int(logger.FieldStatus, status).
			Dur(logger.FieldDuration, time.Since(start)).
			Msg("request")
	}
}

func bodySizeLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
