package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/ledctl/internal/config"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/assets"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/routes"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

var (
	// ErrServerClosed is returned by Serve once Stop has been called.
	ErrServerClosed = errors.New("httpserver: server closed")
	// ErrWriteBufferTooSmall is returned by New when a static asset would not
	// fit in the response buffer.
	ErrWriteBufferTooSmall = errors.New("httpserver: write buffer smaller than static assets")
)

const idlePollInterval = 50 * time.Millisecond

// Server accepts connections from a listener and serves the router on them
// with fixed per-connection buffers.
type Server struct {
	cfg     *config.Config
	handler http.Handler
	logger  logger.Logger
	started time.Time
	ready   *atomic.Bool

	mu      sync.Mutex
	ln      net.Listener
	conns   map[*conn]struct{}
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New builds the server (router, middlewares, route registration).
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) (*Server, error) {
	if n := largestAsset(); cfg.WriteBufferSize < n {
		return nil, fmt.Errorf("%w: %d < %d bytes", ErrWriteBufferTooSmall, cfg.WriteBufferSize, n)
	}

	r := chi.NewRouter()

	// --- Global middlewares
	r.Use(middleware.GetHead)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(loggerClient))

	r.NotFound(handlers.NotFound)

	routes.RegisterAll(r, d)

	return &Server{
		cfg:     cfg,
		handler: r,
		logger:  loggerClient,
		started: d.StartTime,
		ready:   d.Ready,
		conns:   make(map[*conn]struct{}),
	}, nil
}

func largestAsset() int {
	return max(len(assets.IndexHTML), len(assets.IndexCSS), len(assets.IndexJS))
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listener address once Serve has been called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve runs the configured accept strategy on ln and blocks until the
// listener is closed. It returns nil after a graceful Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("HTTP server listening",
		logger.String("addr", ln.Addr().String()),
		logger.String("mode", s.cfg.ServeMode),
		logger.Int("pool_size", s.cfg.PoolSize))

	if s.ready != nil {
		s.ready.Store(true)
	}

	var err error
	switch s.cfg.ServeMode {
	case config.ServeModeSpawn:
		err = s.serveSpawn(ln)
	default:
		err = s.servePool(ln)
	}

	if s.closing.Load() {
		return nil
	}
	return err
}

// Stop closes the listener, then closes idle connections until every
// in-flight request has been answered. When ctx expires first, the remaining
// connections are closed forcibly.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")

	s.mu.Lock()
	s.closing.Store(true)
	ln := s.ln
	s.mu.Unlock()

	if s.ready != nil {
		s.ready.Store(false)
	}

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		s.closeIdle()
		select {
		case <-done:
			s.logger.Info("HTTP server stopped",
				logger.Duration("uptime", time.Since(s.started)))
			return err
		case <-ctx.Done():
			n := s.closeAll()
			s.logger.Warn("shutdown deadline reached, closed active connections",
				logger.Int("connections", n))
			<-done
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// spawnWorker registers one goroutine with the shutdown wait group. It
// refuses once Stop has started so the group is never grown from zero
// while Stop waits on it.
func (s *Server) spawnWorker(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

func (s *Server) track(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

func (s *Server) closeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		if c.state.CompareAndSwap(stateIdle, stateClosed) {
			_ = c.rwc.Close()
		}
	}
}

func (s *Server) closeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.conns {
		c.state.Store(stateClosed)
		_ = c.rwc.Close()
		n++
	}
	return n
}
