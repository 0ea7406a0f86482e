package sink

import (
	"fmt"

	"weir/internal/message"
)

// EmitFn is what a sink calls to notify the job runner that a frame
// (or a batch of frames) has been durably processed.
type EmitFn func(message.Checkpoint)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error        // driver-specific config ⇒ struct
	Push(*message.Frame) error  // consume one frame
	Close() error               // idempotent
}

// AckAware is *optional*; sinks that confirm delivery back to the source
// simply implement it. The compiler wires the callback if present.
type AckAware interface {
	BindAck(EmitFn)
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
