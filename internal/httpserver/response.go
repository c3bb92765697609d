package httpserver

import (
	"errors"
	"net/http"
)

var errResponseTooLarge = errors.New("httpserver: response exceeds write buffer")

// responseBuffer collects a handler's response in a fixed-capacity buffer so
// the status line can carry an exact Content-Length.
type responseBuffer struct {
	header   http.Header
	status   int
	body     []byte
	overflow bool
}

func newResponseBuffer(size int) *responseBuffer {
	return &responseBuffer{
		header: make(http.Header),
		body:   make([]byte, 0, size),
	}
}

func (b *responseBuffer) Header() http.Header { return b.header }

func (b *responseBuffer) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *responseBuffer) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	if b.overflow || len(b.body)+len(p) > cap(b.body) {
		b.overflow = true
		return 0, errResponseTooLarge
	}
	b.body = append(b.body, p...)
	return len(p), nil
}

func (b *responseBuffer) statusCode() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *responseBuffer) reset() {
	for k := range b.header {
		delete(b.header, k)
	}
	b.status = 0
	b.body = b.body[:0]
	b.overflow = false
}
