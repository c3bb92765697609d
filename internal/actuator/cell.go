package actuator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by a Cell that no longer accepts work.
var ErrClosed = errors.New("actuator: cell closed")

// Cell grants exclusive access to a value. fn runs with nobody else holding
// the value and must not block: no I/O, no logging.
type Cell[T any] interface {
	Do(fn func(*T)) error
}

// With runs fn inside the cell and returns its result.
func With[T, R any](c Cell[T], fn func(*T) R) (R, error) {
	var out R
	err := c.Do(func(v *T) { out = fn(v) })
	return out, err
}

// MutexCell guards its value with a sync.Mutex. Callers run fn on their own
// goroutine, so contention is real and the section must stay short.
type MutexCell[T any] struct {
	mu sync.Mutex
	v  T
}

func NewMutexCell[T any](v T) *MutexCell[T] {
	return &MutexCell[T]{v: v}
}

func (c *MutexCell[T]) Do(fn func(*T)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.v)
	return nil
}

type loopOp[T any] struct {
	fn   func(*T)
	done chan any // receives the recovered panic value, or nil
}

// LoopCell hands every closure to a single owner goroutine which runs them
// one after the other. Nothing but that goroutine ever touches the value.
type LoopCell[T any] struct {
	v         T
	ops       chan loopOp[T]
	quit      chan struct{}
	exit      chan struct{}
	closeOnce sync.Once
}

func NewLoopCell[T any](v T) *LoopCell[T] {
	c := &LoopCell[T]{
		v:    v,
		ops:  make(chan loopOp[T]),
		quit: make(chan struct{}),
		exit: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *LoopCell[T]) loop() {
	defer close(c.exit)
	for {
		select {
		case op := <-c.ops:
			op.done <- c.run(op.fn)
		case <-c.quit:
			return
		}
	}
}

func (c *LoopCell[T]) run(fn func(*T)) (recovered any) {
	defer func() { recovered = recover() }()
	fn(&c.v)
	return nil
}

// Do blocks until the owner goroutine has run fn. A panic inside fn is
// re-raised on the caller's goroutine.
func (c *LoopCell[T]) Do(fn func(*T)) error {
	op := loopOp[T]{fn: fn, done: make(chan any, 1)}
	select {
	case c.ops <- op:
	case <-c.quit:
		return ErrClosed
	}
	if p := <-op.done; p != nil {
		panic(fmt.Sprintf("actuator: panic in cell: %v", p))
	}
	return nil
}

// Close stops the owner goroutine. Pending Do calls return ErrClosed.
func (c *LoopCell[T]) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.exit
	return nil
}
