package ninefs

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"git.sr.ht/~moody/ninep"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// NewStatus builds the status tree for bank.
func NewStatus(bank *actuator.Bank, version string) (*Namespace, error) {
	ns := NewNamespace()

	if err := ns.AddFile("/", "version", func() ([]byte, error) {
		return []byte(version + "\n"), nil
	}); err != nil {
		return nil, err
	}
	if err := ns.Mkdir("/", "leds"); err != nil {
		return nil, err
	}

	levels, err := bank.Snapshot()
	if err != nil {
		return nil, err
	}
	for _, lvl := range levels {
		name := strconv.Itoa(int(lvl.ID))
		if lvl.Default {
			name = "default"
		}
		if err := ns.AddFile("/leds", name, levelReader(bank, lvl)); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func levelReader(bank *actuator.Bank, want actuator.Level) ReadFunc {
	return func() ([]byte, error) {
		levels, err := bank.Snapshot()
		if err != nil {
			return nil, err
		}
		for _, lvl := range levels {
			if lvl.Default == want.Default && lvl.ID == want.ID {
				return []byte(actuator.Text(lvl.On) + "\n"), nil
			}
		}
		return nil, errNoFile
	}
}

// Server serves a namespace to every connection accepted on a listener.
type Server struct {
	ns     *Namespace
	logger logger.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewServer(ns *Namespace, log logger.Logger) *Server {
	return &Server{
		ns:     ns,
		logger: log,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Serve accepts 9P sessions on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("9P status export listening", logger.String("addr", ln.Addr().String()))

	for {
		c, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = c.Close()
			return nil
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			srv := ninep.NewSrv(func() ninep.FS { return s.ns })
			srv.ServeIO(c, c)

			_ = c.Close()
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()
	}
}

// Stop closes the listener and every open session.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.ln != nil {
		_ = s.ln.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
