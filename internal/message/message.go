// Package message defines the frame and checkpoint types that flow
// between sources, the job runner, and sinks.
package message

import "time"

// Checkpoint identifies a single source record by its position in the
// backing topic. The zero value means "no source position" (e.g. a frame
// synthesized by an aggregation rather than read from a topic).
type Checkpoint struct {
	Topic     string
	Partition int32
	Offset    int64
}

func (c Checkpoint) IsZero() bool {
	return c.Topic == "" && c.Partition == 0 && c.Offset == 0
}

// Frame is one record in flight.
type Frame struct {
	Key        []byte
	Value      []byte
	Headers    map[string][]byte
	EventTime  time.Time
	Checkpoint Checkpoint
}

// Ack reports that a frame has been durably handled downstream. Drivers
// use it to resolve the matching checkpoint and commit offsets.
type Ack struct {
	Checkpoint Checkpoint
}
