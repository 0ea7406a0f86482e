package kafka

import (
	"context"
	"sync"
	"time"
)

// Throttle bounds how many frames may be in flight between a driver and
// the downstream ack path. Tokens are taken per emitted frame, returned
// on ack, and topped up on a timer so a stalled sink cannot starve the
// consumer forever in auto-commit mode.
type Throttle struct {
	capacity int64
	refill   int64

	mu     sync.Mutex
	tokens int64
	cond   *sync.Cond
	closed bool
}

func NewThrottle(capacity, refill int64, tick time.Duration) *Throttle {
	t := &Throttle{
		capacity: capacity,
		refill:   refill,
		tokens:   capacity,
	}
	t.cond = sync.NewCond(&t.mu)

	go func() {
		tk := time.NewTicker(tick)
		defer tk.Stop()
		for range tk.C {
			t.mu.Lock()
			if t.closed {
				t.mu.Unlock()
				return
			}
			t.tokens += t.refill
			if t.tokens > t.capacity {
				t.tokens = t.capacity
			}
			t.mu.Unlock()
			t.cond.Broadcast()
		}
	}()
	return t
}

func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	for t.tokens == 0 && ctx.Err() == nil && !t.closed {
		t.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.tokens--
	t.mu.Unlock()
	return nil
}

func (t *Throttle) TryAcquire(n int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tokens < n {
		return false
	}
	t.tokens -= n
	return true
}

func (t *Throttle) Release(n int64) {
	t.mu.Lock()
	t.tokens += n
	if t.tokens > t.capacity {
		t.tokens = t.capacity
	}
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (t *Throttle) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()
}
