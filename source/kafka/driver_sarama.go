package kafka

import (
	"context"
	"sync"

	"weir/internal/logging"
	"weir/internal/message"
	"weir/internal/telemetry"

	"github.com/IBM/sarama"
)

type SaramaDriver struct {
	cfg   Config
	mode  CommitMode
	cl    sarama.Client
	group sarama.ConsumerGroup
	th    *Throttle
	led   *Ledger[struct{}]

	mu      sync.Mutex
	pending map[message.Checkpoint]func()

	ackCh chan message.Checkpoint
}

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg, d.mode = config, config.CommitMode
	d.pending = make(map[message.Checkpoint]func())

	d.th = NewThrottle(config.BackPressure.Capacity, config.BackPressure.Capacity/10, config.BackPressure.CheckInt)
	d.led = NewLedger[struct{}](config.BackPressure.Capacity, config.Checkpoint.CommitInt)

	d.ackCh = make(chan message.Checkpoint, int(config.BackPressure.Capacity))

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	return err
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	handler := &groupHandler{driver: d, emit: emit}

	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	_ = d.group.Close()
	_ = d.cl.Close()
	d.th.Close()
	return nil
}

type groupHandler struct {
	driver *SaramaDriver
	emit   EmitFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	h.driver.mu.Lock()
	defer h.driver.mu.Unlock()

	dropped := len(h.driver.pending)
	h.driver.pending = make(map[message.Checkpoint]func())

	if dropped > 0 {
		logging.L().Info("sarama-driver: rebalance – cleared pending callbacks", "count", dropped)
	}
	return nil
}

// resolveAck resolves one acked checkpoint, if it is still pending.
func (d *SaramaDriver) resolveAck(rec message.Checkpoint) {
	d.mu.Lock()
	cb, ok := d.pending[rec]
	if ok {
		delete(d.pending, rec)
	}
	d.mu.Unlock()
	if ok {
		cb()
		d.th.Release(1)
		telemetry.AcksResolved.WithLabelValues("sarama").Inc()
		logging.L().Debug("kafka ack released", "topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset)
	}
}

func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for {
		if !h.driver.th.TryAcquire(1) {
			select {
			case rec := <-h.driver.ackCh:
				h.driver.resolveAck(rec)
				continue
			case <-sess.Context().Done():
				return sess.Context().Err()
			}
		}

		select {
		case <-sess.Context().Done():
			h.driver.th.Release(1)
			return sess.Context().Err()

		case rec := <-h.driver.ackCh:
			h.driver.th.Release(1)
			h.driver.resolveAck(rec)
			continue

		case msg, ok := <-claim.Messages():
			if !ok {
				h.driver.th.Release(1)
				return nil
			}

			resolve, err := h.driver.led.Track(sess.Context(), struct{}{})
			if err != nil {
				h.driver.th.Release(1)
				return err
			}

			rec := message.Checkpoint{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
			frame := &message.Frame{
				Key:        msg.Key,
				Value:      msg.Value,
				Headers:    toHeaderMap(msg.Headers),
				EventTime:  msg.Timestamp,
				Checkpoint: rec,
			}
			if err := h.emit(frame); err != nil {
				h.driver.th.Release(1)
				return err
			}
			telemetry.RecordsRead.WithLabelValues(msg.Topic).Inc()

			if h.driver.mode == CommitAuto {
				_, due := resolve()
				sess.MarkMessage(msg, "")
				if due {
					sess.Commit()
				}
				h.driver.th.Release(1)
			} else {
				h.driver.mu.Lock()
				h.driver.pending[rec] = func() {
					_, due := resolve()
					sess.MarkMessage(msg, "")
					if due {
						sess.Commit()
					}
				}
				h.driver.mu.Unlock()
			}
		}
	}
}

func (d *SaramaDriver) OnAck(ack *message.Ack) {
	if ack == nil || ack.Checkpoint.IsZero() {
		return
	}
	rec := ack.Checkpoint

	select {
	case d.ackCh <- rec:
	default:
		// channel full: resolve the oldest ack in place so its token
		// and offset are not lost, then retry once
		select {
		case old := <-d.ackCh:
			d.resolveAck(old)
		default:
		}
		select {
		case d.ackCh <- rec:
		default:
			d.resolveAck(rec)
		}
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
