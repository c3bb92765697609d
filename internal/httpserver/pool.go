package httpserver

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

const maxAcceptBackoff = time.Second

// servePool runs PoolSize workers that each accept and serve one connection
// at a time. A connection beyond the pool size waits in the listener
// backlog until a worker frees up.
func (s *Server) servePool(ln net.Listener) error {
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for i := 0; i < s.cfg.PoolSize; i++ {
		worker := i
		wg.Add(1)
		started := s.spawnWorker(func() {
			defer wg.Done()
			if err := s.acceptLoop(ln, func(c net.Conn) { s.serveConn(c) }); err != nil {
				errOnce.Do(func() {
					firstErr = err
					s.logger.Error("pool worker stopped",
						logger.Int("worker", worker),
						logger.Error(err))
					_ = ln.Close()
				})
			}
		})
		if !started {
			wg.Done()
		}
	}

	wg.Wait()
	return firstErr
}

// serveSpawn accepts connections in the caller goroutine and serves each one
// on a goroutine of its own.
func (s *Server) serveSpawn(ln net.Listener) error {
	return s.acceptLoop(ln, func(c net.Conn) {
		if !s.spawnWorker(func() { s.serveConn(c) }) {
			_ = c.Close()
		}
	})
}

// acceptLoop hands every accepted connection to handle. It returns nil when
// the listener is closed and backs off on transient accept errors.
func (s *Server) acceptLoop(ln net.Listener, handle func(net.Conn)) error {
	var backoff time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if !isTransient(err) {
				return err
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("accept failed, retrying",
				logger.Duration("backoff", backoff),
				logger.Error(err))
			time.Sleep(backoff)
			continue
		}
		backoff = 0
		handle(c)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return d
}

func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var tmp interface{ Temporary() bool }
	return errors.As(err, &tmp) && tmp.Temporary()
}
