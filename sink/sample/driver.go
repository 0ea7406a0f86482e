// Package sample implements the console-style "sample the stream" sink:
// it prints a bounded number of result rows to stdout and then keeps
// acking silently so the job is not throttled by an idle observer.
package sample

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"weir/internal/message"
	"weir/sink"
)

type Config struct {
	MaxRows       int // stop printing after this many rows (0 = unlimited)
	ValueMaxBytes int // truncate printed values (0 = no limit)
	PrintCounter  bool
	BatchSize     int // flush acks after N frames  (0 = off)
	FlushMS       int // flush acks after this time (0 = off)
}

type driver struct {
	cfg Config
	ack sink.EmitFn

	mu      sync.Mutex
	pending []message.Checkpoint
	timer   *time.Timer

	seq uint64
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("sample-sink: want Config")
	}
	d.cfg = cfg
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func (d *driver) Push(f *message.Frame) error {
	seq := atomic.AddUint64(&d.seq, 1)

	if d.cfg.MaxRows == 0 || seq <= uint64(d.cfg.MaxRows) {
		d.print(seq, f)
	}

	if d.ack == nil || f.Checkpoint.IsZero() {
		return nil
	}

	d.mu.Lock()
	d.pending = append(d.pending, f.Checkpoint)

	if d.cfg.BatchSize > 0 && len(d.pending) >= d.cfg.BatchSize {
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}
	if d.cfg.BatchSize == 0 && d.cfg.FlushMS == 0 {
		// no batching configured: ack straight away
		d.flushLocked()
		d.mu.Unlock()
		return nil
	}

	if d.cfg.FlushMS > 0 {
		every := time.Duration(d.cfg.FlushMS) * time.Millisecond
		if d.timer == nil {
			d.timer = time.AfterFunc(every, d.onTimer)
		} else {
			d.timer.Reset(every)
		}
	}
	d.mu.Unlock()
	return nil
}

func (d *driver) print(seq uint64, f *message.Frame) {
	val := f.Value
	truncated := ""
	if d.cfg.ValueMaxBytes > 0 && len(val) > d.cfg.ValueMaxBytes {
		val = val[:d.cfg.ValueMaxBytes]
		truncated = "…"
	}
	if d.cfg.PrintCounter {
		fmt.Printf("[sample %06d] key=%s %s%s\n", seq, f.Key, val, truncated)
	} else {
		fmt.Printf("[sample] key=%s %s%s\n", f.Key, val, truncated)
	}
}

func (d *driver) onTimer() {
	d.mu.Lock()
	d.flushLocked()
	d.timer = nil
	d.mu.Unlock()
}

func (d *driver) flushLocked() {
	if len(d.pending) == 0 {
		return
	}
	for _, cp := range d.pending {
		d.ack(cp)
	}
	d.pending = d.pending[:0]
}

func (d *driver) Close() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.ack != nil {
		d.flushLocked()
	}
	d.mu.Unlock()
	return nil
}

func init() { sink.Register("sample", func() sink.Adapter { return &driver{} }) }
