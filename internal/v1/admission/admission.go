// Package admission implements the process-wide connection admission
// counter: a single atomic integer capping total concurrent connections
// across every room, and a scoped token whose release on every exit path
// guarantees the counter is decremented exactly once per admitted
// connection.
package admission

import (
	"errors"
	"sync/atomic"
)

// ErrAtCapacity is returned by Acquire when the ceiling has been reached.
var ErrAtCapacity = errors.New("admission: at capacity")

// Counter is a process-wide admission gate. The zero value is not usable;
// construct with NewCounter.
type Counter struct {
	ceiling int64
	current int64
}

// NewCounter builds a Counter that admits at most ceiling concurrent
// connections.
func NewCounter(ceiling int64) *Counter {
	return &Counter{ceiling: ceiling}
}

// Token represents one admitted connection's slot. Release must be called
// exactly once, from every exit path of the connection's lifetime (normal
// close, read error, panic recovery) — callers should defer it immediately
// after a successful Acquire.
type Token struct {
	counter  *Counter
	released int32
}

// Acquire attempts to admit one connection. It returns ErrAtCapacity without
// blocking if the ceiling has been reached.
func (c *Counter) Acquire() (*Token, error) {
	for {
		cur := atomic.LoadInt64(&c.current)
		if cur >= c.ceiling {
			return nil, ErrAtCapacity
		}
		if atomic.CompareAndSwapInt64(&c.current, cur, cur+1) {
			return &Token{counter: c}, nil
		}
	}
}

// Release returns the token's slot to the counter. Safe to call more than
// once; only the first call has an effect.
func (t *Token) Release() {
	if t == nil {
		return
	}
	if atomic.CompareAndSwapInt32(&t.released, 0, 1) {
		atomic.AddInt64(&t.counter.current, -1)
	}
}

// Current returns the number of currently admitted connections.
func (c *Counter) Current() int64 {
	return atomic.LoadInt64(&c.current)
}

// Ceiling returns the configured admission ceiling.
func (c *Counter) Ceiling() int64 {
	return c.ceiling
}
