package kafka

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"weir/internal/logging"
	"weir/internal/message"
	"weir/internal/telemetry"

	kgo "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaGoDriver is a reader-based alternative to the sarama consumer
// group. It trades the sarama driver's claim-level control for a much
// smaller surface.
type KafkaGoDriver struct {
	cfg    Config
	mode   CommitMode
	reader *kgo.Reader
	th     *Throttle

	mu      sync.Mutex
	pending map[message.Checkpoint]kgo.Message

	ackCh chan message.Checkpoint
}

func (d *KafkaGoDriver) Configure(config Config) error {
	d.cfg, d.mode = config, config.CommitMode
	d.pending = make(map[message.Checkpoint]kgo.Message)
	d.th = NewThrottle(config.BackPressure.Capacity, config.BackPressure.Capacity/10, config.BackPressure.CheckInt)
	d.ackCh = make(chan message.Checkpoint, int(config.BackPressure.Capacity))

	dialer := &kgo.Dialer{Timeout: 10 * time.Second, DualStack: true}
	if config.TLSEn {
		dialer.TLS = &tls.Config{}
	}
	if config.SASLUser != "" {
		dialer.SASLMechanism = plain.Mechanism{Username: config.SASLUser, Password: config.SASLPass}
	}

	start := kgo.LastOffset
	if config.StartFrom == "oldest" {
		start = kgo.FirstOffset
	}

	d.reader = kgo.NewReader(kgo.ReaderConfig{
		Brokers:     config.Brokers,
		GroupID:     config.GroupID,
		GroupTopics: config.Topics,
		StartOffset: start,
		Dialer:      dialer,
		// offsets are committed explicitly below
		CommitInterval: 0,
	})
	return nil
}

func (d *KafkaGoDriver) Run(ctx context.Context, emit EmitFunc) error {
	if d.mode == CommitE2E {
		go d.ackLoop(ctx)
	}

	for {
		if err := d.th.Acquire(ctx); err != nil {
			return err
		}
		msg, err := d.reader.FetchMessage(ctx)
		if err != nil {
			d.th.Release(1)
			return err
		}

		rec := message.Checkpoint{Topic: msg.Topic, Partition: int32(msg.Partition), Offset: msg.Offset}
		frame := &message.Frame{
			Key:        msg.Key,
			Value:      msg.Value,
			Headers:    headerMap(msg.Headers),
			EventTime:  msg.Time,
			Checkpoint: rec,
		}
		if err := emit(frame); err != nil {
			d.th.Release(1)
			return err
		}
		telemetry.RecordsRead.WithLabelValues(msg.Topic).Inc()

		if d.mode == CommitAuto {
			if err := d.reader.CommitMessages(ctx, msg); err != nil {
				d.th.Release(1)
				return err
			}
			d.th.Release(1)
			continue
		}

		d.mu.Lock()
		d.pending[rec] = msg
		d.mu.Unlock()
	}
}

func (d *KafkaGoDriver) ackLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-d.ackCh:
			d.mu.Lock()
			msg, ok := d.pending[rec]
			if ok {
				delete(d.pending, rec)
			}
			d.mu.Unlock()
			if !ok {
				continue
			}
			if err := d.reader.CommitMessages(ctx, msg); err != nil {
				logging.L().Warn("kafkago-driver: commit failed", "topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset, "err", err)
			}
			d.th.Release(1)
			telemetry.AcksResolved.WithLabelValues("kafkago").Inc()
		}
	}
}

func (d *KafkaGoDriver) OnAck(ack *message.Ack) {
	if ack == nil || ack.Checkpoint.IsZero() {
		return
	}
	select {
	case d.ackCh <- ack.Checkpoint:
	default:
		// channel full: forget the record instead of leaking its
		// token; the uncommitted offset replays after a restart
		d.mu.Lock()
		_, ok := d.pending[ack.Checkpoint]
		if ok {
			delete(d.pending, ack.Checkpoint)
		}
		d.mu.Unlock()
		if ok {
			d.th.Release(1)
		}
		logging.L().Warn("kafkago-driver: ack channel full; offset will replay",
			"topic", ack.Checkpoint.Topic, "partition", ack.Checkpoint.Partition, "offset", ack.Checkpoint.Offset)
	}
}

func (d *KafkaGoDriver) Close() error {
	d.th.Close()
	if d.reader == nil {
		return nil
	}
	return d.reader.Close()
}

func headerMap(src []kgo.Header) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[h.Key] = h.Value
	}
	return out
}
