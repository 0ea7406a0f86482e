package kafka

import (
	"context"
	"sync"
	"time"
)

// Ledger tracks in-order checkpoint payloads until they resolve. The
// highest payload whose predecessors have all resolved is the safe commit
// position. Track blocks once the number of unresolved entries reaches
// the cap, and the resolve callback reports whether a commit is due per
// the configured cadence.
type Ledger[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	entries []*ledgerEntry[T]
	highest *T
	pending int64
	cap     int64

	commitEveryNS int64
	lastCommitNS  int64
}

type ledgerEntry[T any] struct {
	payload T
	done    bool
}

func NewLedger[T any](capacity int64, commitEvery time.Duration) *Ledger[T] {
	l := &Ledger[T]{cap: capacity, commitEveryNS: commitEvery.Nanoseconds()}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Track registers a payload in arrival order. The returned resolve
// function marks it done and reports the highest contiguously-resolved
// payload and whether the driver should flush offsets now.
func (l *Ledger[T]) Track(ctx context.Context, payload T) (func() (highest *T, shouldCommit bool), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		l.cond.Broadcast()
	}()

	for l.pending > 0 && l.pending >= l.cap {
		l.cond.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	e := &ledgerEntry[T]{payload: payload}
	l.entries = append(l.entries, e)
	l.pending++

	return func() (*T, bool) {
		l.mu.Lock()
		e.done = true
		for len(l.entries) > 0 && l.entries[0].done {
			p := l.entries[0].payload
			l.highest = &p
			l.entries = l.entries[1:]
			l.pending--
		}
		highest := l.highest
		l.mu.Unlock()
		l.cond.Broadcast()

		now := time.Now().UnixNano()
		l.mu.Lock()
		due := l.lastCommitNS+l.commitEveryNS <= now
		if due {
			l.lastCommitNS = now
		}
		l.mu.Unlock()
		return highest, due
	}, nil
}

func (l *Ledger[T]) Pending() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *Ledger[T]) Highest() *T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.highest
}
