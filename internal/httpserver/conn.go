package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/ledctl/internal/config"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// Reasons a connection ends early. Only ErrOversize and ErrMalformed get an
// error response; the others close the connection silently.
var (
	ErrTimeout   = errors.New("httpserver: timeout")
	ErrTransport = errors.New("httpserver: transport error")
	ErrOversize  = errors.New("httpserver: request exceeds read buffer")
	ErrMalformed = errors.New("httpserver: malformed request")
)

// Connection states. Only idle connections may be closed by Stop while it
// waits for in-flight requests.
const (
	stateIdle int32 = iota
	stateActive
	stateClosed
)

type conn struct {
	srv    *Server
	cfg    *config.Config
	rwc    net.Conn
	id     string
	remote string
	log    logger.Logger
	state  atomic.Int32

	lr   *io.LimitedReader // caps the bytes one request may pull off the socket
	br   *bufio.Reader
	bw   *bufio.Writer
	body []byte
	res  *responseBuffer
}

func (s *Server) newConn(rwc net.Conn) *conn {
	id := uuid.NewString()
	remote := rwc.RemoteAddr().String()
	lr := &io.LimitedReader{R: rwc, N: int64(s.cfg.ReadBufferSize)}
	return &conn{
		srv:    s,
		cfg:    s.cfg,
		rwc:    rwc,
		id:     id,
		remote: remote,
		log:    s.logger.With(logger.String("conn_id", id), logger.String("remote", remote)),
		lr:     lr,
		br:     bufio.NewReaderSize(lr, s.cfg.ReadBufferSize),
		bw:     bufio.NewWriterSize(rwc, s.cfg.WriteBufferSize),
		body:   make([]byte, s.cfg.ReadBufferSize),
		res:    newResponseBuffer(s.cfg.WriteBufferSize),
	}
}

// serveConn runs the request loop on one connection until it ends, then
// closes it. A panic escaping the router only takes down this connection.
func (s *Server) serveConn(rwc net.Conn) {
	c := s.newConn(rwc)
	s.track(c, true)

	ctx, cancel := context.WithCancel(mw.WithConnID(context.Background(), c.id))
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("connection handler panicked", logger.String("panic", fmt.Sprint(r)))
		}
		cancel()
		c.state.Store(stateClosed)
		_ = c.rwc.Close()
		s.track(c, false)
	}()

	c.log.Debug("connection accepted")

	err := c.serve(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug("connection closed")
	case errors.Is(err, ErrTimeout):
		c.log.Debug("connection timed out", logger.Error(err))
	default:
		c.log.Warn("connection aborted", logger.Error(err))
	}
}

func (c *conn) serve(ctx context.Context) error {
	for {
		if err := c.awaitRequestStart(); err != nil {
			return err
		}
		keep, err := c.handleRequest(ctx)
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
}

// awaitRequestStart waits for the first byte of the next request. The
// connection is idle for the whole wait.
func (c *conn) awaitRequestStart() error {
	c.lr.N = int64(c.cfg.ReadBufferSize - c.br.Buffered())
	if c.br.Buffered() > 0 {
		return nil
	}

	_ = c.rwc.SetReadDeadline(deadline(c.cfg.StartReadTimeout))
	if _, err := c.br.Peek(1); err != nil {
		switch {
		case c.state.Load() == stateClosed:
			return net.ErrClosed
		case errors.Is(err, io.EOF):
			return io.EOF
		case isTimeout(err):
			return fmt.Errorf("%w: no request within %v", ErrTimeout, c.cfg.StartReadTimeout)
		default:
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
	}
	return nil
}

// handleRequest reads one request, dispatches it and writes the response.
// It reports whether the connection may carry another request.
func (c *conn) handleRequest(ctx context.Context) (bool, error) {
	if !c.state.CompareAndSwap(stateIdle, stateActive) {
		return false, net.ErrClosed
	}
	defer c.state.CompareAndSwap(stateActive, stateIdle)

	req, err := c.readRequest()
	if err != nil {
		switch {
		case errors.Is(err, ErrOversize) && errors.Is(err, errHeadTooLarge):
			c.writeError(http.StatusRequestHeaderFieldsTooLarge)
		case errors.Is(err, ErrOversize):
			c.writeError(http.StatusRequestEntityTooLarge)
		case errors.Is(err, ErrMalformed):
			c.writeError(http.StatusBadRequest)
		}
		return false, err
	}

	req.RemoteAddr = c.remote
	req = req.WithContext(ctx)

	c.res.reset()
	c.srv.handler.ServeHTTP(c.res, req)

	keep := c.cfg.KeepAlive && !req.Close && !c.srv.closing.Load()
	if c.res.overflow {
		c.log.Error("response exceeds write buffer",
			logger.String("path", req.URL.Path),
			logger.Int("limit", c.cfg.WriteBufferSize))
		c.res.reset()
		http.Error(c.res, "response too large", http.StatusInternalServerError)
		keep = false
	}

	if err := c.writeResponse(req, keep); err != nil {
		return false, err
	}
	return keep, nil
}

const lingerTimeout = 250 * time.Millisecond

var errHeadTooLarge = errors.New("request head too large")

func (c *conn) readRequest() (*http.Request, error) {
	_ = c.rwc.SetReadDeadline(deadline(c.cfg.ReadTimeout))

	req, err := http.ReadRequest(c.br)
	if err != nil {
		switch {
		case c.lr.N <= 0:
			return nil, fmt.Errorf("%w: %w", ErrOversize, errHeadTooLarge)
		case isTimeout(err):
			return nil, fmt.Errorf("%w: reading request: %v", ErrTimeout, err)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isNetError(err):
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if err := c.readBody(req); err != nil {
		return nil, err
	}
	return req, nil
}

// readBody moves the request body into the connection's fixed body buffer.
func (c *conn) readBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.ContentLength == 0 {
		req.Body = http.NoBody
		return nil
	}
	if req.ContentLength > int64(len(c.body)) {
		return fmt.Errorf("%w: content length %d", ErrOversize, req.ContentLength)
	}

	buf := c.body
	if req.ContentLength > 0 {
		buf = c.body[:req.ContentLength]
	}

	n, err := io.ReadFull(req.Body, buf)
	switch {
	case err == nil && req.ContentLength < 0:
		var extra [1]byte
		if m, _ := req.Body.Read(extra[:]); m > 0 {
			return fmt.Errorf("%w: chunked body", ErrOversize)
		}
	case err == nil:
	case c.lr.N <= 0:
		return fmt.Errorf("%w: body", ErrOversize)
	case isTimeout(err):
		return fmt.Errorf("%w: reading body: %v", ErrTimeout, err)
	case req.ContentLength < 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)):
		// chunked body shorter than the buffer
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), isNetError(err):
		return fmt.Errorf("%w: %v", ErrTransport, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	req.Body = io.NopCloser(bytes.NewReader(c.body[:n]))
	req.ContentLength = int64(n)
	return nil
}

func (c *conn) writeResponse(req *http.Request, keep bool) error {
	h := c.res.header
	body := c.res.body

	if h.Get("Content-Type") == "" && len(body) > 0 {
		h.Set("Content-Type", http.DetectContentType(body))
	}
	h.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	if keep && !req.ProtoAtLeast(1, 1) {
		h.Set("Connection", "keep-alive")
	}

	resp := &http.Response{
		StatusCode:    c.res.statusCode(),
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		ContentLength: int64(len(body)),
		Close:         !keep,
		Request:       req,
	}
	if len(body) > 0 && req.Method != http.MethodHead {
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	_ = c.rwc.SetWriteDeadline(deadline(c.cfg.WriteTimeout))
	if err := resp.Write(c.bw); err != nil {
		return classifyWriteErr(err)
	}
	if err := c.bw.Flush(); err != nil {
		return classifyWriteErr(err)
	}
	return nil
}

// writeError answers a request that could not be framed. Best effort: the
// connection is closed right after either way.
func (c *conn) writeError(code int) {
	c.res.reset()
	http.Error(c.res, http.StatusText(code), code)
	placeholder := &http.Request{Method: http.MethodGet, ProtoMajor: 1, ProtoMinor: 1}
	if err := c.writeResponse(placeholder, false); err != nil {
		c.log.Debug("failed to write error response",
			logger.Int("status", code),
			logger.Error(err))
		return
	}
	c.closeWriteAndDrain()
}

// closeWriteAndDrain half-closes the connection and discards what the peer
// is still sending, so closing with unread input does not reset the
// connection before the error response is read.
func (c *conn) closeWriteAndDrain() {
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = c.rwc.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.Copy(io.Discard, c.rwc)
}

func classifyWriteErr(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: writing response: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: writing response: %v", ErrTransport, err)
}

// deadline turns a timeout into an absolute deadline; zero disables it.
func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, net.ErrClosed)
}
