package journal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

const defaultWriteTimeout = 2 * time.Second

var ErrNotStarted = errors.New("journal: not started")

// Event describes one completed toggle.
type Event struct {
	ID     uint8     `json:"id"`
	Name   string    `json:"name"`
	On     bool      `json:"on"`
	At     time.Time `json:"at"`
	Remote string    `json:"remote,omitempty"`
}

// Sink persists events somewhere outside the process.
type Sink interface {
	Write(ctx context.Context, ev Event) error
}

// Stats counts what happened to recorded events.
type Stats struct {
	Queued  int    `json:"queued"`
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Journal mirrors toggle events to a Sink from a background goroutine so
// request handlers never wait on it. A nil *Journal accepts and discards
// everything.
type Journal struct {
	sink         Sink
	logger       logger.Logger
	events       chan Event
	writeTimeout time.Duration
	stopCh       chan struct{}
	done         chan struct{}
	startOnce    sync.Once
	stopOnce     sync.Once
	started      atomic.Bool

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// New creates a journal with room for buffer pending events.
func New(sink Sink, log logger.Logger, buffer int, writeTimeout time.Duration) *Journal {
	if buffer < 1 {
		buffer = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Journal{
		sink:         sink,
		logger:       log,
		events:       make(chan Event, buffer),
		writeTimeout: writeTimeout,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Record queues ev and reports whether it was accepted. It never blocks:
// when the queue is full the event is dropped.
func (j *Journal) Record(ev Event) bool {
	if j == nil {
		return false
	}
	select {
	case j.events <- ev:
		return true
	default:
		n := j.dropped.Add(1)
		j.logger.Warn("journal queue full, dropping toggle event",
			logger.Uint8("id", ev.ID),
			logger.Int("dropped_total", int(n)))
		return false
	}
}

// Start launches the writer goroutine.
func (j *Journal) Start(ctx context.Context) error {
	if j == nil {
		return nil
	}
	j.startOnce.Do(func() {
		j.started.Store(true)
		go j.run(ctx)
	})
	return nil
}

func (j *Journal) run(ctx context.Context) {
	defer close(j.done)
	for {
		select {
		case ev := <-j.events:
			j.write(ev)
		case <-j.stopCh:
			j.drain()
			return
		case <-ctx.Done():
			j.drain()
			return
		}
	}
}

// drain flushes whatever is still queued.
func (j *Journal) drain() {
	for {
		select {
		case ev := <-j.events:
			j.write(ev)
		default:
			return
		}
	}
}

func (j *Journal) write(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), j.writeTimeout)
	defer cancel()

	if err := j.sink.Write(ctx, ev); err != nil {
		j.failed.Add(1)
		j.logger.Warn("failed to write toggle event",
			logger.Uint8("id", ev.ID),
			logger.Error(err))
		return
	}
	j.written.Add(1)
}

// Stop flushes pending events and waits for the writer to exit.
func (j *Journal) Stop() error {
	if j == nil {
		return nil
	}
	j.stopOnce.Do(func() { close(j.stopCh) })
	if !j.started.Load() {
		return ErrNotStarted
	}
	<-j.done
	return nil
}

// Stats returns current counters.
func (j *Journal) Stats() Stats {
	if j == nil {
		return Stats{}
	}
	return Stats{
		Queued:  len(j.events),
		Written: j.written.Load(),
		Failed:  j.failed.Load(),
		Dropped: j.dropped.Load(),
	}
}
