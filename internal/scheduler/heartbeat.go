package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

// Heartbeat blinks a dedicated output at a fixed interval so the device
// shows it is alive. The output is owned by the heartbeat goroutine alone
// and never shared with the actuator bank.
type Heartbeat struct {
	out      actuator.Output
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	beats uint64
}

// NewHeartbeat creates a heartbeat blinking out every interval.
func NewHeartbeat(out actuator.Output, log logger.Logger, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		out:      out,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins blinking until Stop is called or ctx is cancelled.
func (h *Heartbeat) Start(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	go func() {
		defer close(h.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.beat()
			case <-h.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	h.logger.Debug("heartbeat started", logger.Duration("interval", h.interval))
	return nil
}

// Stop halts the blinking and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	<-h.done
}

// Beats returns how many times the output has been toggled.
func (h *Heartbeat) Beats() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.beats
}

func (h *Heartbeat) beat() {
	h.mu.Lock()
	h.out.Toggle()
	h.beats++
	h.mu.Unlock()
}
