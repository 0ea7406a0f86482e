package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"weir/internal/catalog"
	"weir/internal/codec"
	"weir/internal/message"
	"weir/internal/spec"
	"weir/internal/window"
	"weir/sink"
	kafkasink "weir/sink/kafka"
	"weir/sink/sample"
	"weir/source/kafka"
)

// Compile turns the parsed job file into one Runner per job: a consumer
// on the source table's topic, the operator for the job kind, and the
// declared sinks with acks bound.
func Compile(file spec.File, cat *catalog.Catalog) ([]*Runner, error) {
	runners := make([]*Runner, 0, len(file.Jobs))
	for _, js := range file.Jobs {
		r, err := compileJob(file, cat, js)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", js.Name, err)
		}
		runners = append(runners, r)
	}
	return runners, nil
}

func compileJob(file spec.File, cat *catalog.Catalog, js spec.JobSpec) (*Runner, error) {
	src, err := cat.SourceTable(js.From)
	if err != nil {
		return nil, err
	}
	provider, err := cat.Provider(src.Provider)
	if err != nil {
		return nil, err
	}

	r := NewRunner(js.Name, js.Kind, uuid.NewString())
	r.SetTables(js.From, js.Into)

	/*──────── source ───────*/
	driverName := file.Source.Driver
	if driverName == "" {
		driverName = "sarama"
	}
	drv, err := kafka.NewAdapter(driverName)
	if err != nil {
		return nil, err
	}
	kc := provider.Config
	kc.Topics = []string{src.Topic}
	kc.GroupID = groupID(file, js)
	if file.Source.StartFrom != "" {
		kc.StartFrom = file.Source.StartFrom
	}
	// select jobs commit only after the sinks confirm delivery; the
	// cluster config's commit_mode must not weaken that
	if js.Kind == spec.JobSelect {
		kc.CommitMode = kafka.CommitE2E
	}
	if err := drv.Configure(kc); err != nil {
		return nil, err
	}
	r.SetSource(drv)

	if aw, ok := drv.(interface{ OnAck(*message.Ack) }); ok {
		r.SubscribeAck(aw.OnAck)
	}

	/*──────── operator ───────*/
	dec, err := codec.NewDecoder(src.EventTimeColumn, src.EventTimeUnit)
	if err != nil {
		return nil, err
	}
	switch js.Kind {
	case spec.JobAggregate:
		length, slide, err := parseWindow(js.Window)
		if err != nil {
			return nil, err
		}
		assigner, err := window.NewAssigner(length, slide)
		if err != nil {
			return nil, err
		}
		if js.GroupBy == "" || js.Measure == "" {
			return nil, fmt.Errorf("aggregate jobs need group_by and measure")
		}
		r.SetOperator(newAggregateOperator(js.Name, dec, js.GroupBy, js.Measure,
			assigner, js.Threshold, src.WatermarkDelay))

	case spec.JobSelect:
		var where *codec.Predicate
		if js.Where != nil {
			p := codec.Predicate{Column: js.Where.Column, Op: js.Where.Op, Value: js.Where.Value}
			if err := p.Validate(); err != nil {
				return nil, err
			}
			where = &p
		}
		r.SetOperator(newSelectOperator(js.Name, dec, js.Columns, where))

	default:
		return nil, fmt.Errorf("unsupported job kind %q", js.Kind)
	}

	/*──────── sinks ───────*/
	if len(js.Into) == 0 {
		return nil, fmt.Errorf("job needs at least one sink")
	}
	for _, name := range js.Into {
		sDrv, err := buildSink(file, cat, name)
		if err != nil {
			return nil, err
		}
		r.AddSink(sDrv)
	}
	return r, nil
}

func buildSink(file spec.File, cat *catalog.Catalog, name string) (sink.Adapter, error) {
	if name == "sample" {
		sDrv, err := sink.NewAdapter("sample")
		if err != nil {
			return nil, err
		}
		sc := file.SampleConfig()
		return sDrv, sDrv.Configure(sample.Config{
			MaxRows:       sc.MaxRows,
			ValueMaxBytes: sc.ValueMaxBytes,
			PrintCounter:  sc.PrintCounter,
			BatchSize:     sc.AckBatchSize,
			FlushMS:       sc.AckFlushMS,
		})
	}

	tbl, err := cat.SinkTable(name)
	if err != nil {
		return nil, err
	}
	provider, err := cat.Provider(tbl.Provider)
	if err != nil {
		return nil, err
	}
	sDrv, err := sink.NewAdapter("kafka")
	if err != nil {
		return nil, err
	}
	return sDrv, sDrv.Configure(kafkasink.Config{
		Brokers: provider.Config.Brokers,
		Topic:   tbl.Topic,
		Acks:    -1,
	})
}

// groupID derives the consumer group for a job. A shared base keeps the
// workshop-style single-job setup stable; with several jobs each gets its
// own group so they do not steal partitions from one another.
func groupID(file spec.File, js spec.JobSpec) string {
	base := file.Source.GroupID
	if base == "" {
		base = "weir"
	}
	if len(file.Jobs) == 1 {
		return base
	}
	return base + "-" + js.Name
}

func parseWindow(ws spec.WindowSpec) (length, slide time.Duration, err error) {
	if ws.Length == "" || ws.Slide == "" {
		return 0, 0, fmt.Errorf("aggregate jobs need window length and slide")
	}
	if length, err = time.ParseDuration(ws.Length); err != nil {
		return 0, 0, fmt.Errorf("bad window length %q: %w", ws.Length, err)
	}
	if slide, err = time.ParseDuration(ws.Slide); err != nil {
		return 0, 0, fmt.Errorf("bad window slide %q: %w", ws.Slide, err)
	}
	return length, slide, nil
}
