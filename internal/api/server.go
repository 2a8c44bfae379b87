// Package api serves a read-only HTTP view of a running pipeline: health,
// a status snapshot, artifact history and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrea/The-Spiral/internal/ledger"
	"github.com/kingrea/The-Spiral/internal/metrics"
	"github.com/kingrea/The-Spiral/internal/stage"
	"github.com/kingrea/The-Spiral/internal/status"
)

const (
	// DefaultAddr is used when no listen address is given.
	DefaultAddr = "127.0.0.1:8765"
	// ShutdownTimeout bounds draining in-flight requests.
	ShutdownTimeout = 5 * time.Second
)

// Liveness reports which stages are running.
type Liveness interface {
	Names() []string
	Alive(name string) bool
}

// History reads an artifact's ledger trail.
type History interface {
	History(artifact string) ([]ledger.Event, error)
	Artifacts() ([]string, error)
}

// Server wraps the gin engine and its listener.
type Server struct {
	params   stage.Loader
	liveness Liveness
	history  History
	logger   *slog.Logger
	clock    func() time.Time

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLiveness reports supervised stages on /healthz.
func WithLiveness(l Liveness) Option {
	return func(s *Server) { s.liveness = l }
}

// WithHistory enables the /artifacts endpoints.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer builds a server reading parameters from params.
func NewServer(params stage.Loader, opts ...Option) *Server {
	s := &Server{
		params: params,
		logger: slog.Default(),
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/artifacts", s.handleArtifacts)
	router.GET("/artifacts/:name/history", s.handleHistory)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

// Run serves on addr until ctx is cancelled, then drains.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = s.clock()
	s.mu.Unlock()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logger.Info("api listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once Run has started listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Stages        map[string]bool `json:"stages,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{Status: "ok"}
	s.mu.Lock()
	if !s.started.IsZero() {
		resp.UptimeSeconds = int64(s.clock().Sub(s.started).Seconds())
	}
	s.mu.Unlock()
	if s.liveness != nil {
		resp.Stages = map[string]bool{}
		for _, name := range s.liveness.Names() {
			alive := s.liveness.Alive(name)
			resp.Stages[name] = alive
			if !alive {
				resp.Status = "degraded"
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	snap, err := status.Load(s.params, s.clock())
	if err != nil {
		s.logger.Warn("status collection failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleArtifacts(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "ledger disabled"})
		return
	}
	names, err := s.history.Artifacts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": names})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "ledger disabled"})
		return
	}
	name := c.Param("name")
	events, err := s.history.History(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if len(events) == 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no history for " + name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifact": name, "events": events})
}
