package spec

// Table kinds.
const (
	TableSource = "source"
	TableSink   = "sink"
)

// Job kinds.
const (
	JobAggregate = "aggregate"
	JobSelect    = "select"
)

type ProviderSpec struct {
	Name   string `yaml:"name"`
	Config string `yaml:"config"` // path to a koanf-loaded cluster config
}

type EventTimeSpec struct {
	Column string `yaml:"column"`
	Unit   string `yaml:"unit"` // "seconds", "millis", "micros", "iso8601"
}

type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // "int", "long", "double", "string", "bool"
}

type TableSpec struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // source|sink
	Provider string `yaml:"provider"`
	Topic    string `yaml:"topic"`
	Format   string `yaml:"format"` // json only for v1

	// Source-only fields.
	EventTime      EventTimeSpec `yaml:"event_time"`
	WatermarkDelay string        `yaml:"watermark_delay"` // duration, e.g. "5s"
	Columns        []ColumnSpec  `yaml:"columns"`
}

type WindowSpec struct {
	Length string `yaml:"length"`
	Slide  string `yaml:"slide"`
}

// PredicateSpec is a single comparison against a literal. Structured on
// purpose: ad-hoc queries are declared, not parsed.
type PredicateSpec struct {
	Column string `yaml:"column"`
	Op     string `yaml:"op"` // eq|ne|gt|ge|lt|le
	Value  any    `yaml:"value"`
}

type JobSpec struct {
	Name string   `yaml:"name"`
	Kind string   `yaml:"kind"` // aggregate|select
	From string   `yaml:"from"` // source table name
	Into []string `yaml:"into"` // sink table names and/or "sample"

	// Aggregate jobs.
	GroupBy   string     `yaml:"group_by"`
	Measure   string     `yaml:"measure"`
	Window    WindowSpec `yaml:"window"`
	Threshold float64    `yaml:"threshold"`

	// Select jobs.
	Columns []string       `yaml:"columns"`
	Where   *PredicateSpec `yaml:"where"`
}

type SourceSpec struct {
	Driver    string `yaml:"driver"` // "sarama" (default) or "kafkago"
	GroupID   string `yaml:"group_id"`
	StartFrom string `yaml:"start_from"` // oldest|newest
}

type sampleSection struct {
	MaxRows       int  `yaml:"max_rows"`
	ValueMaxBytes int  `yaml:"value_max_bytes"`
	PrintCounter  bool `yaml:"print_counter"`
	AckBatchSize  int  `yaml:"ack_batch_size"`
	AckFlushMS    int  `yaml:"ack_flush_ms"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Providers []ProviderSpec `yaml:"providers"`
	Tables    []TableSpec    `yaml:"tables"`
	Jobs      []JobSpec      `yaml:"jobs"`

	Source SourceSpec    `yaml:"source"`
	Sample sampleSection `yaml:"sample"`
}

func (s sampleSection) MaxRowsOrDefault() int {
	if s.MaxRows <= 0 {
		return 100
	}
	return s.MaxRows
}

// SampleConfig is the resolved sample-sink configuration.
type SampleConfig struct {
	MaxRows       int
	ValueMaxBytes int
	PrintCounter  bool
	AckBatchSize  int
	AckFlushMS    int
}

func (f File) SampleConfig() SampleConfig {
	return SampleConfig{
		MaxRows:       f.Sample.MaxRowsOrDefault(),
		ValueMaxBytes: f.Sample.ValueMaxBytes,
		PrintCounter:  f.Sample.PrintCounter,
		AckBatchSize:  f.Sample.AckBatchSize,
		AckFlushMS:    f.Sample.AckFlushMS,
	}
}
