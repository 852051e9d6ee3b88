// Package server owns the listener, the per-request dispatch (static
// resolution first, application fallback second) and the graceful
// shutdown lifecycle.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"example.com/tryserve/internal/cache"
	"example.com/tryserve/internal/config"
	"example.com/tryserve/internal/cors"
	"example.com/tryserve/internal/logger"
	"example.com/tryserve/internal/static"
)

// Server serves HTTP requests, trying the static file tree before the
// application fallback handler.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	policy   cors.Policy
	resolver *static.Resolver
	fallback http.Handler

	beforeClose func()
	store       static.FileStore

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
	hookOnce sync.Once
	doneCh   chan struct{}
}

// Option adjusts a Server at construction time.
type Option func(*Server)

// WithBeforeClose registers a hook invoked exactly once when shutdown
// begins, before the listener stops accepting.
func WithBeforeClose(fn func()) Option {
	return func(s *Server) { s.beforeClose = fn }
}

// WithFileStore replaces the filesystem-backed store, mainly for tests.
func WithFileStore(store static.FileStore) Option {
	return func(s *Server) { s.store = store }
}

// New creates a Server. fallback answers every request the static layer
// cannot; nil falls back to a plain 404 handler.
func New(cfg *config.Config, lg *logger.Logger, fallback http.Handler, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}

	policy, err := cors.FromMatch(cfg.Server.CORSMatch)
	if err != nil {
		return nil, fmt.Errorf("building CORS policy: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		log:      lg,
		policy:   policy,
		fallback: fallback,
		store:    static.OSFileStore{},
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var contentCache *cache.Cache
	if cfg.Static.MemoryCache {
		contentCache = cache.New()
	}
	s.resolver = static.NewResolver(&cfg.Static, s.store, contentCache, lg)
	s.httpSrv = &http.Server{Handler: s}

	return s, nil
}

// ServeHTTP dispatches one request: CORS headers per policy, OPTIONS
// short-circuit, static resolution, then the application fallback. A
// panic anywhere below is logged and answered with a 500 scoped to this
// request only.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	sw := &statusWriter{ResponseWriter: w}

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("request handler panicked", logger.LogFields{
				"method": r.Method,
				"path":   r.URL.Path,
				"panic":  fmt.Sprint(rec),
			})
			if sw.status == 0 {
				http.Error(sw, "Internal Server Error", http.StatusInternalServerError)
			}
		}
		s.logRequest(r, sw, started)
	}()

	s.policy.Apply(r, w.Header())

	// OPTIONS answers before any static or application routing.
	if r.Method == http.MethodOptions {
		sw.WriteHeader(http.StatusNoContent)
		return
	}

	if s.resolver.Serve(sw, r) {
		return
	}
	s.fallback.ServeHTTP(sw, r)
}

func (s *Server) logRequest(r *http.Request, sw *statusWriter, started time.Time) {
	if !s.cfg.AccessLogEnabled() {
		return
	}
	status := sw.status
	if status == 0 {
		status = http.StatusOK
	}
	s.log.Info("request", logger.LogFields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      status,
		"bytes":       sw.bytes,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

// Listen binds the configured port. Port 0 picks an ephemeral port,
// readable afterwards from Addr.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding listener on %s: %w", addr, err)
	}
	if max := s.cfg.Server.MaxConnections; max > 0 {
		ln = netutil.LimitListener(ln, max)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("listener bound", logger.LogFields{
		"addr":            ln.Addr().String(),
		"files_dir":       s.cfg.Static.FilesDir,
		"max_connections": s.cfg.Server.MaxConnections,
	})
	return nil
}

// Addr returns the bound listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until shutdown. Each connection's requests
// are handled concurrently by the transport; an interrupt or terminate
// signal triggers Shutdown with the configured graceful timeout. Serve
// returns nil after a clean shutdown.
func (s *Server) Serve() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info("shutdown signal received", logger.LogFields{"signal": sig.String()})
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				s.log.Warn("graceful shutdown incomplete, closing", logger.LogFields{"error": err.Error()})
				s.httpSrv.Close()
			}
		case <-s.doneCh:
		}
	}()

	err := s.httpSrv.Serve(s.listener)
	close(s.doneCh)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start binds the listener and serves until shutdown.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown runs the before-close hook once, stops accepting and waits
// for in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hookOnce.Do(func() {
		if s.beforeClose != nil {
			s.beforeClose()
		}
	})
	return s.httpSrv.Shutdown(ctx)
}

// statusWriter records the status and body size written for access
// logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// RecordStatus implements static.StatusRecorder for responses that are
// serialized past WriteHeader.
func (w *statusWriter) RecordStatus(code int) {
	if w.status == 0 {
		w.status = code
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}
