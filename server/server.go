// Package server serves a built schema over HTTP.
//
//	srv := server.New(s, server.WithLogger(logger))
//	if err := srv.Run(ctx, ":8080"); err != nil {
//	    return err
//	}
//
// The served schema can be replaced while requests are in flight with Swap.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/invql/graphql/schema"
	"github.com/syssam/invql/graphql/sdl"
	"github.com/syssam/invql/internal/ctxlog"
	"github.com/syssam/invql/privacy"
)

// Request headers read by the server. The viewer headers are read only
// with WithViewerHeaders.
const (
	HeaderRequestID   = "X-Request-Id"
	HeaderViewerID    = "X-Viewer-Id"
	HeaderViewerRoles = "X-Viewer-Roles"
	HeaderTenantID    = "X-Tenant-Id"
)

// Server serves a schema. It is safe for concurrent use.
type Server struct {
	state    atomic.Pointer[state]
	logger   *slog.Logger
	health   func(context.Context) error
	grace    time.Duration
	shutdown time.Duration
	// viewers enables viewer headers.
	viewers bool
}

type state struct {
	schema *schema.Schema
	close  func() error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets the check run by the health endpoint, typically a
// database ping.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithCloser sets the function releasing the resources of the initial
// schema.
func WithCloser(closer func() error) Option {
	return func(s *Server) {
		s.state.Load().close = closer
	}
}

// WithGracePeriod sets how long a replaced schema stays open for the
// requests still using it. Defaults to 30 seconds.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Server) {
		s.grace = d
	}
}

// WithViewerHeaders builds the privacy viewer of a request from the
// X-Viewer-Id, X-Viewer-Roles and X-Tenant-Id headers. Enable it only
// behind a proxy that authenticates callers and sets these headers itself;
// otherwise the headers are ignored and every request is anonymous.
func WithViewerHeaders() Option {
	return func(s *Server) {
		s.viewers = true
	}
}

// New returns a server for s.
func New(s *schema.Schema, opts ...Option) *Server {
	srv := &Server{
		logger:   slog.Default(),
		grace:    30 * time.Second,
		shutdown: 5 * time.Second,
	}
	srv.state.Store(&state{schema: s})
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Schema returns the schema currently served.
func (s *Server) Schema() *schema.Schema {
	return s.state.Load().schema
}

// Swap replaces the served schema with next. The previous schema is closed
// once the grace period has passed. closer may be nil.
func (s *Server) Swap(next *schema.Schema, closer func() error) {
	old := s.state.Swap(&state{schema: next, close: closer})
	if old == nil || old.close == nil {
		return
	}
	time.AfterFunc(s.grace, func() {
		if err := old.close(); err != nil {
			s.logger.Warn("invql: closing replaced schema", "error", err)
		}
	})
}

// Close releases the resources of the current schema.
func (s *Server) Close() error {
	st := s.state.Load()
	if st.close == nil {
		return nil
	}
	return st.close()
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	if s.viewers {
		r.Use(viewer())
	}
	r.POST("/graphql", s.post)
	r.GET("/graphql", s.get)
	r.GET("/playground", gin.WrapH(playground.Handler("invql", "/graphql")))
	r.GET("/schema.graphql", s.printSchema)
	r.GET("/healthz", s.healthz)
	return r
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
// and closes the current schema.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("invql: listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err := g.Wait()
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Server) post(c *gin.Context) {
	var req schema.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	s.execute(c, req)
}

func (s *Server) get(c *gin.Context) {
	req := schema.Request{
		Query:         c.Query("query"),
		OperationName: c.Query("operationName"),
	}
	if vars := c.Query("variables"); vars != "" {
		if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
			badRequest(c, "invalid variables: "+err.Error())
			return
		}
	}
	s.execute(c, req)
}

func (s *Server) execute(c *gin.Context, req schema.Request) {
	if strings.TrimSpace(req.Query) == "" {
		badRequest(c, "missing query")
		return
	}
	ctx := c.Request.Context()
	res := s.Schema().Execute(ctx, req)
	if len(res.Errors) > 0 {
		ctxlog.FromContext(ctx).Debug("invql: query errors",
			"operation", req.OperationName,
			"errors", len(res.Errors),
			"first", res.Errors[0].Message,
		)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) printSchema(c *gin.Context) {
	var buf bytes.Buffer
	if err := sdl.Print(&buf, s.Schema()); err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"errors": []gin.H{{"message": msg}},
	})
}

// requestID tags every request with an ID, taken from the request header
// when present, and a logger carrying it.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Header(HeaderRequestID, id)
		ctx := ctxlog.WithLogger(c.Request.Context(), s.logger.With("request_id", id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ctxlog.FromContext(c.Request.Context()).Info("invql: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// viewer attaches the viewer described by the request headers, if any.
func viewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderViewerID))
		if id == "" {
			c.Next()
			return
		}
		v := &privacy.SimpleViewer{
			UserID:   id,
			TenantID: strings.TrimSpace(c.GetHeader(HeaderTenantID)),
			Roles:    splitList(c.GetHeader(HeaderViewerRoles)),
		}
		c.Request = c.Request.WithContext(privacy.WithViewer(c.Request.Context(), v))
		c.Next()
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
