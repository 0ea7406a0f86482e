package kafka

import (
	"fmt"

	"weir/internal/logging"
	"weir/internal/message"
	"weir/sink"

	"github.com/IBM/sarama"
)

type Config struct {
	Brokers []string
	Topic   string
	Acks    int16 // 0,1,-1
}

type driver struct {
	out Config
	p   sarama.AsyncProducer
	ack sink.EmitFn
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config")
	}
	d.out = cfg

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	d.p = p
	go d.confirmLoop()
	return nil
}

// confirmLoop turns producer success/error reports into upstream acks.
// The source checkpoint rides along in the producer message metadata.
func (d *driver) confirmLoop() {
	errs := d.p.Errors()
	succ := d.p.Successes()
	for errs != nil || succ != nil {
		select {
		case msg, ok := <-succ:
			if !ok {
				succ = nil
				continue
			}
			if d.ack == nil {
				continue
			}
			if cp, ok := msg.Metadata.(message.Checkpoint); ok && !cp.IsZero() {
				d.ack(cp)
			}
		case perr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.L().Error("kafka-sink: produce failed", "topic", d.out.Topic, "err", perr.Err)
		}
	}
}

func (d *driver) Push(f *message.Frame) error {
	pm := &sarama.ProducerMessage{
		Topic:    d.out.Topic,
		Key:      sarama.ByteEncoder(f.Key),
		Value:    sarama.ByteEncoder(f.Value),
		Metadata: f.Checkpoint,
	}
	if !f.EventTime.IsZero() {
		pm.Timestamp = f.EventTime
	}
	d.p.Input() <- pm
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func (d *driver) Close() error {
	return d.p.Close()
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
