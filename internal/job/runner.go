package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"weir/internal/message"
	"weir/sink"
	"weir/source/kafka"
)

// Operator turns one source frame into zero or more output frames.
// ackNow reports that the runner itself should resolve the source
// checkpoint (the frame's contribution is captured, filtered out, or
// unusable); otherwise the ack is owed by a sink.
type Operator interface {
	Process(f *message.Frame) (out []*message.Frame, ackNow bool, err error)
}

type Runner struct {
	name  string
	kind  string
	runID string
	from  string
	into  []string

	source kafka.Adapter
	op     Operator
	sinks  []sink.Adapter

	procMu sync.Mutex // serializes Process across source partitions

	mu      sync.Mutex
	subs    []func(*message.Ack)
	ackNeed int                        // ack-aware sinks per frame
	waiting map[message.Checkpoint]int // sink confirms so far
	started time.Time
	lastErr error
}

func NewRunner(name, kind, runID string) *Runner {
	return &Runner{
		name: name, kind: kind, runID: runID,
		waiting: make(map[message.Checkpoint]int),
	}
}

func (r *Runner) Name() string  { return r.name }
func (r *Runner) Kind() string  { return r.kind }
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }
func (r *Runner) SetOperator(op Operator)   { r.op = op }

// AddSink attaches a sink and, if it confirms deliveries, counts it
// toward the per-checkpoint ack quorum.
func (r *Runner) AddSink(s sink.Adapter) {
	if aw, ok := s.(sink.AckAware); ok {
		aw.BindAck(r.Ack)
		r.ackNeed++
	}
	r.sinks = append(r.sinks, s)
}

func (r *Runner) SetTables(from string, into []string) {
	r.from, r.into = from, into
}

func (r *Runner) SubscribeAck(fn func(*message.Ack)) {
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Ack records one sink's confirmation of a checkpoint. The checkpoint
// resolves upstream only once every ack-aware sink has confirmed it, so
// a fast sink cannot commit an offset a slower sink still owes.
func (r *Runner) Ack(cp message.Checkpoint) {
	r.mu.Lock()
	n := r.waiting[cp] + 1
	if n < r.ackNeed {
		r.waiting[cp] = n
		r.mu.Unlock()
		return
	}
	delete(r.waiting, cp)
	r.mu.Unlock()

	r.resolve(cp)
}

// resolve fans a resolved checkpoint out to every subscriber (source
// drivers in e2e commit mode).
func (r *Runner) resolve(cp message.Checkpoint) {
	ack := &message.Ack{Checkpoint: cp}

	r.mu.Lock()
	handlers := append([]func(*message.Ack){}, r.subs...)
	r.mu.Unlock()

	for _, fn := range handlers {
		fn(ack)
	}
}

func (r *Runner) handleFrame(f *message.Frame) error {
	r.procMu.Lock()
	out, ackNow, err := r.op.Process(f)
	r.procMu.Unlock()
	if err != nil {
		return err
	}
	for _, of := range out {
		for _, s := range r.sinks {
			if err := s.Push(of); err != nil {
				return err
			}
		}
	}
	if ackNow {
		// resolved by the operator itself, no sink confirms are owed
		r.resolve(f.Checkpoint)
	}
	return nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	if r.op == nil {
		return errors.New("runner: no operator configured")
	}
	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()
	go func() {
		err := r.source.Run(ctx, r.handleFrame)
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
	}()
	return nil
}

func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Status is a point-in-time view for the status API.
type Status struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	RunID   string    `json:"run_id"`
	From    string    `json:"from"`
	Into    []string  `json:"into"`
	Started time.Time `json:"started"`
	Error   string    `json:"error,omitempty"`
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		Name:    r.name,
		Kind:    r.kind,
		RunID:   r.runID,
		From:    r.from,
		Into:    r.into,
		Started: r.started,
	}
	if r.lastErr != nil && !errors.Is(r.lastErr, context.Canceled) {
		st.Error = r.lastErr.Error()
	}
	return st
}
