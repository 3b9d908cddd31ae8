// Package server exposes a session over a small JSON API. Handlers run one at
// a time: the workspace files have a single writer.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/KaramelBytes/tabstep-cli/internal/metrics"
	"github.com/KaramelBytes/tabstep-cli/internal/session"
)

const requestIDHeader = "X-Request-ID"

// Options configures a Server.
type Options struct {
	// ExportName is the attachment name offered by GET /v1/export.
	ExportName string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Server routes HTTP requests to a session.
type Server struct {
	sess       *session.Session
	logger     *slog.Logger
	metrics    *metrics.Metrics
	exportName string

	mu     sync.Mutex
	engine *gin.Engine
}

// New builds the router for sess.
func New(sess *session.Session, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.ExportName == "" {
		opt.ExportName = "session_export.py"
	}
	s := &Server{
		sess:       sess,
		logger:     opt.Logger,
		metrics:    opt.Metrics,
		exportName: opt.ExportName,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.observe())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := r.Group("/v1", s.serialize())
	v1.GET("/steps", s.handleSteps)
	v1.GET("/steps/:id", s.handleStep)
	v1.POST("/steps/:id/toggle", s.handleToggleStep)
	v1.DELETE("/steps/:id", s.handleDeleteStep)
	v1.POST("/upload", s.handleUpload)
	v1.POST("/clean", s.handleClean)
	v1.POST("/preview", s.handlePreview)
	v1.POST("/undo", s.handleUndo)
	v1.POST("/redo", s.handleRedo)
	v1.POST("/charts", s.handleChart)
	v1.POST("/ml", s.handleML)
	v1.GET("/export", s.handleExport)
	v1.POST("/import", s.handleImport)
	v1.GET("/table", s.handleTable)
	v1.PUT("/table", s.handleSaveTable)
	v1.PATCH("/table/cell", s.handleEditCell)
	v1.GET("/columns", s.handleColumns)
	v1.GET("/summary", s.handleSummary)
	v1.GET("/history", s.handleHistory)
	return r
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		s.metrics.Request(c.Request.Method, route, c.Writer.Status(), d)
		s.logger.Debug("request", "request_id", c.GetString("request_id"), "method", c.Request.Method,
			"route", route, "status", c.Writer.Status(), "duration", d)
	}
}

func (s *Server) serialize() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.Next()
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http adapter listening", "addr", addr, "workspace", s.sess.Workspace())
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("http adapter shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
