package job

import (
	"encoding/json"
	"time"

	"weir/internal/aggregate"
	"weir/internal/codec"
	"weir/internal/logging"
	"weir/internal/message"
	"weir/internal/telemetry"
	"weir/internal/window"
)

/*──────── aggregate ───────*/

type aggregateOperator struct {
	job     string
	dec     *codec.Decoder
	groupBy string
	measure string

	store     *aggregate.Store
	watermark *window.WatermarkTracker
}

func newAggregateOperator(jobName string, dec *codec.Decoder, groupBy, measure string,
	assigner window.Assigner, threshold float64, delay time.Duration) *aggregateOperator {
	return &aggregateOperator{
		job:       jobName,
		dec:       dec,
		groupBy:   groupBy,
		measure:   measure,
		store:     aggregate.NewStore(assigner, threshold),
		watermark: window.NewWatermarkTracker(delay),
	}
}

// resultRow is the shape published to the sink table, tagged with the
// window's end.
type resultRow struct {
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Key            string    `json:"key"`
	Count          int64     `json:"count"`
	Sum            float64   `json:"sum"`
	Avg            float64   `json:"avg"`
	Min            float64   `json:"min"`
	Max            float64   `json:"max"`
	AboveThreshold int64     `json:"above_threshold"`
}

func (o *aggregateOperator) Process(f *message.Frame) ([]*message.Frame, bool, error) {
	row, err := o.dec.Decode(f.Value)
	if err != nil {
		o.skip(f, err)
		return nil, true, nil
	}
	et, err := o.dec.EventTime(row)
	if err != nil {
		o.skip(f, err)
		return nil, true, nil
	}

	// behind the watermark: its windows may already be gone
	if wm := o.watermark.Current(); !wm.IsZero() && et.Before(wm) {
		telemetry.RecordsLate.WithLabelValues(o.job).Inc()
		logging.L().Debug("late record dropped", "job", o.job, "event_time", et, "watermark", wm)
		return nil, true, nil
	}

	key, err := codec.Text(row, o.groupBy)
	if err != nil {
		o.skip(f, err)
		return nil, true, nil
	}
	v, err := codec.Number(row, o.measure)
	if err != nil {
		o.skip(f, err)
		return nil, true, nil
	}

	o.store.Fold(key, et, v)
	wm := o.watermark.Observe(f.Checkpoint.Partition, et)
	telemetry.Watermark.WithLabelValues(o.job).Set(float64(wm.Unix()))

	results := o.store.CloseThrough(wm)
	if len(results) == 0 {
		return nil, true, nil
	}

	out := make([]*message.Frame, 0, len(results))
	closed := map[time.Time]struct{}{}
	for _, res := range results {
		closed[res.WindowEnd] = struct{}{}
		val, err := json.Marshal(resultRow{
			WindowStart:    res.WindowStart,
			WindowEnd:      res.WindowEnd,
			Key:            res.Key,
			Count:          res.Count,
			Sum:            res.Sum,
			Avg:            res.Avg,
			Min:            res.Min,
			Max:            res.Max,
			AboveThreshold: res.Over,
		})
		if err != nil {
			return nil, false, err
		}
		out = append(out, &message.Frame{
			Key:       []byte(res.Key),
			Value:     val,
			EventTime: res.WindowEnd,
		})
	}
	telemetry.WindowsClosed.WithLabelValues(o.job).Add(float64(len(closed)))
	telemetry.ResultsEmitted.WithLabelValues(o.job).Add(float64(len(out)))
	return out, true, nil
}

func (o *aggregateOperator) skip(f *message.Frame, err error) {
	telemetry.RecordsDecodeFailed.WithLabelValues(o.job).Inc()
	logging.L().Warn("record skipped", "job", o.job,
		"topic", f.Checkpoint.Topic, "partition", f.Checkpoint.Partition,
		"offset", f.Checkpoint.Offset, "err", err)
}

/*──────── select ───────*/

type selectOperator struct {
	job     string
	dec     *codec.Decoder
	columns []string
	where   *codec.Predicate
}

func newSelectOperator(jobName string, dec *codec.Decoder, columns []string, where *codec.Predicate) *selectOperator {
	return &selectOperator{job: jobName, dec: dec, columns: columns, where: where}
}

func (o *selectOperator) Process(f *message.Frame) ([]*message.Frame, bool, error) {
	row, err := o.dec.Decode(f.Value)
	if err != nil {
		telemetry.RecordsDecodeFailed.WithLabelValues(o.job).Inc()
		logging.L().Warn("record skipped", "job", o.job,
			"topic", f.Checkpoint.Topic, "offset", f.Checkpoint.Offset, "err", err)
		return nil, true, nil
	}

	if o.where != nil {
		ok, err := o.where.Eval(row)
		if err != nil {
			telemetry.RecordsDecodeFailed.WithLabelValues(o.job).Inc()
			return nil, true, nil
		}
		if !ok {
			// filtered out still resolves its checkpoint
			return nil, true, nil
		}
	}

	val := f.Value
	if len(o.columns) > 0 {
		val, err = codec.Project(row, o.columns)
		if err != nil {
			telemetry.RecordsDecodeFailed.WithLabelValues(o.job).Inc()
			return nil, true, nil
		}
	}

	telemetry.ResultsEmitted.WithLabelValues(o.job).Inc()
	out := &message.Frame{
		Key:        f.Key,
		Value:      val,
		EventTime:  f.EventTime,
		Checkpoint: f.Checkpoint, // sinks ack the source record
	}
	return []*message.Frame{out}, false, nil
}
