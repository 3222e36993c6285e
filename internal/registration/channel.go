// Package registration hands fragment contributions to a consumer that may
// subscribe before or after the fragments arrive.
package registration

import (
	"errors"
	"sync"
)

// ErrSinkInstalled is returned when a second consumer tries to subscribe.
var ErrSinkInstalled = errors.New("sink already installed")

// Channel delivers every sent value to the sink exactly once, in send order.
// Values sent before a sink is installed wait in a pending buffer that is
// drained, oldest first, as part of Install.
//
// Delivery happens while the channel lock is held, so a sink must not call
// Send on the channel it is subscribed to.
type Channel[T any] struct {
	mu      sync.Mutex
	sink    func(T)
	pending []T
}

// Send hands v to the installed sink, or buffers it if there is none yet.
// It reports whether v was delivered immediately.
func (c *Channel[T]) Send(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink != nil {
		c.sink(v)
		return true
	}
	c.pending = append(c.pending, v)
	return false
}

// Install subscribes sink and drains the pending buffer into it before any
// later Send can run. It returns the number of drained values.
func (c *Channel[T]) Install(sink func(T)) (int, error) {
	if sink == nil {
		return 0, errors.New("nil sink")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sink != nil {
		return 0, ErrSinkInstalled
	}
	c.sink = sink
	drained := len(c.pending)
	for _, v := range c.pending {
		sink(v)
	}
	c.pending = nil
	return drained, nil
}

// Pending returns the number of buffered values awaiting a sink.
func (c *Channel[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Installed reports whether a sink has subscribed.
func (c *Channel[T]) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}
