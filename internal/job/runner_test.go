package job

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"weir/internal/codec"
	"weir/internal/message"
	"weir/internal/window"
	"weir/sink"
)

type captureSink struct {
	pushed []*message.Frame
	ackFn  sink.EmitFn
	mute   bool // accept frames but never confirm them
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(f *message.Frame) error {
	c.pushed = append(c.pushed, f)
	if !c.mute && c.ackFn != nil && !f.Checkpoint.IsZero() {
		c.ackFn(f.Checkpoint)
	}
	return nil
}
func (c *captureSink) Close() error           { return nil }
func (c *captureSink) BindAck(fn sink.EmitFn) { c.ackFn = fn }

func sensorFrame(t *testing.T, offset int64, sensorID int, tsMicros int64, sensor6 float64) *message.Frame {
	t.Helper()
	val := fmt.Sprintf(`{"sensor_id":%d,"sensor_ts":%d,"sensor_6":%g}`, sensorID, tsMicros, sensor6)
	return &message.Frame{
		Value:      []byte(val),
		Checkpoint: message.Checkpoint{Topic: "iot", Partition: 0, Offset: offset},
	}
}

func newTestRunner(t *testing.T, op Operator) (*Runner, *captureSink, *[]message.Checkpoint) {
	t.Helper()
	r := NewRunner("test", "test", "run-1")
	r.SetOperator(op)
	cs := &captureSink{}
	r.AddSink(cs)

	var acks []message.Checkpoint
	r.SubscribeAck(func(a *message.Ack) { acks = append(acks, a.Checkpoint) })
	return r, cs, &acks
}

func mustDecoder(t *testing.T) *codec.Decoder {
	t.Helper()
	d, err := codec.NewDecoder("sensor_ts", codec.UnitMicros)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	return d
}

func TestRunner_SelectForwardsAndSinkAcks(t *testing.T) {
	op := newSelectOperator("test", mustDecoder(t), []string{"sensor_id", "sensor_6"}, nil)
	r, cs, acks := newTestRunner(t, op)

	f := sensorFrame(t, 42, 8, 1_700_000_000_000_000, 71.5)
	if err := r.handleFrame(f); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(cs.pushed) != 1 {
		t.Fatalf("expected 1 pushed frame, got %d", len(cs.pushed))
	}
	if string(cs.pushed[0].Value) != `{"sensor_6":71.5,"sensor_id":8}` {
		t.Fatalf("unexpected projection: %s", cs.pushed[0].Value)
	}
	if len(*acks) != 1 || (*acks)[0].Offset != 42 {
		t.Fatalf("expected sink-driven ack for offset 42, got %+v", *acks)
	}
}

func TestRunner_AckWaitsForEverySink(t *testing.T) {
	op := newSelectOperator("test", mustDecoder(t), nil, nil)
	r := NewRunner("test", "test", "run-1")
	r.SetOperator(op)

	fast := &captureSink{}
	slow := &captureSink{mute: true}
	r.AddSink(fast)
	r.AddSink(slow)

	var acks []message.Checkpoint
	r.SubscribeAck(func(a *message.Ack) { acks = append(acks, a.Checkpoint) })

	f := sensorFrame(t, 5, 8, 1_700_000_000_000_000, 71.5)
	if err := r.handleFrame(f); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(fast.pushed) != 1 || len(slow.pushed) != 1 {
		t.Fatalf("both sinks must receive the frame, got %d/%d", len(fast.pushed), len(slow.pushed))
	}
	if len(acks) != 0 {
		t.Fatalf("offset must stay uncommitted until every sink confirms, got %d acks", len(acks))
	}

	// the slower sink finally confirms
	slow.ackFn(f.Checkpoint)
	if len(acks) != 1 || acks[0].Offset != 5 {
		t.Fatalf("expected the checkpoint to resolve after the last confirm, got %+v", acks)
	}
}

func TestRunner_SelectFilteredOutStillAcks(t *testing.T) {
	where := &codec.Predicate{Column: "sensor_6", Op: "gt", Value: 90}
	op := newSelectOperator("test", mustDecoder(t), nil, where)
	r, cs, acks := newTestRunner(t, op)

	if err := r.handleFrame(sensorFrame(t, 7, 8, 1_700_000_000_000_000, 71.5)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(cs.pushed) != 0 {
		t.Fatalf("expected no pushed frames, got %d", len(cs.pushed))
	}
	if len(*acks) != 1 || (*acks)[0].Offset != 7 {
		t.Fatalf("filtered record must still resolve its checkpoint, got %+v", *acks)
	}
}

func TestRunner_MalformedRecordIsSkippedAndAcked(t *testing.T) {
	op := newSelectOperator("test", mustDecoder(t), nil, nil)
	r, cs, acks := newTestRunner(t, op)

	f := &message.Frame{Value: []byte("not json"), Checkpoint: message.Checkpoint{Topic: "iot", Offset: 9}}
	if err := r.handleFrame(f); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(cs.pushed) != 0 || len(*acks) != 1 {
		t.Fatalf("want skip+ack, got pushed=%d acks=%d", len(cs.pushed), len(*acks))
	}
}

func TestRunner_AggregateEmitsOnWatermark(t *testing.T) {
	assigner, err := window.NewAssigner(10*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("NewAssigner: %v", err)
	}
	op := newAggregateOperator("test", mustDecoder(t), "sensor_id", "sensor_6", assigner, 60, 0)
	r, cs, acks := newTestRunner(t, op)

	base := int64(1_700_000_010_000_000) // micros, 10s-aligned

	// two readings for device 8 inside [10s, 20s)
	if err := r.handleFrame(sensorFrame(t, 1, 8, base+1_000_000, 50)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if err := r.handleFrame(sensorFrame(t, 2, 8, base+2_000_000, 70)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(cs.pushed) != 0 {
		t.Fatalf("window must stay open until the watermark passes its end, got %d frames", len(cs.pushed))
	}

	// watermark reaches 20s: the window closes
	if err := r.handleFrame(sensorFrame(t, 3, 9, base+10_000_000, 1)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(cs.pushed) != 1 {
		t.Fatalf("expected 1 result frame, got %d", len(cs.pushed))
	}

	var res struct {
		WindowEnd      time.Time `json:"window_end"`
		Key            string    `json:"key"`
		Count          int64     `json:"count"`
		Sum            float64   `json:"sum"`
		Avg            float64   `json:"avg"`
		Min            float64   `json:"min"`
		Max            float64   `json:"max"`
		AboveThreshold int64     `json:"above_threshold"`
	}
	if err := json.Unmarshal(cs.pushed[0].Value, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Key != "8" || res.Count != 2 || res.Sum != 120 || res.Avg != 60 ||
		res.Min != 50 || res.Max != 70 || res.AboveThreshold != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	wantEnd := time.UnixMicro(base + 10_000_000).UTC()
	if !res.WindowEnd.Equal(wantEnd) {
		t.Fatalf("want window_end %v, got %v", wantEnd, res.WindowEnd)
	}
	if string(cs.pushed[0].Key) != "8" {
		t.Fatalf("result must be keyed by device id, got %q", cs.pushed[0].Key)
	}

	// every folded record acks immediately in aggregate jobs
	if len(*acks) != 3 {
		t.Fatalf("expected 3 acks, got %d", len(*acks))
	}
}

func TestRunner_AggregateDropsLateRecords(t *testing.T) {
	assigner, err := window.NewAssigner(10*time.Second, 10*time.Second)
	if err != nil {
		t.Fatalf("NewAssigner: %v", err)
	}
	op := newAggregateOperator("test", mustDecoder(t), "sensor_id", "sensor_6", assigner, 60, 0)
	r, cs, acks := newTestRunner(t, op)

	base := int64(1_700_000_010_000_000)
	if err := r.handleFrame(sensorFrame(t, 1, 8, base+30_000_000, 50)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	// event time behind the watermark: dropped, but checkpoint resolves
	if err := r.handleFrame(sensorFrame(t, 2, 8, base, 99)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if len(*acks) != 2 {
		t.Fatalf("expected 2 acks, got %d", len(*acks))
	}
	for _, f := range cs.pushed {
		var res struct {
			Count int64 `json:"count"`
		}
		_ = json.Unmarshal(f.Value, &res)
		if res.Count != 1 {
			t.Fatalf("late record must not be folded, got %+v", res)
		}
	}
}

func TestRunner_StartWithoutSource(t *testing.T) {
	r := NewRunner("test", "test", "run-1")
	r.SetOperator(newSelectOperator("test", mustDecoder(t), nil, nil))
	if err := r.Start(t.Context()); err == nil {
		t.Fatal("expected error for missing source")
	}
}
