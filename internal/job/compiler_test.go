package job

import (
	"context"
	"testing"

	"weir/internal/catalog"
	"weir/internal/spec"
	"weir/source/kafka"
)

type fakeDriver struct {
	cfg kafka.Config
}

func (d *fakeDriver) Configure(c kafka.Config) error { d.cfg = c; return nil }
func (d *fakeDriver) Run(ctx context.Context, emit kafka.EmitFunc) error {
	<-ctx.Done()
	return ctx.Err()
}
func (d *fakeDriver) Close() error { return nil }

func compileFixture(t *testing.T, jobs []spec.JobSpec) ([]*Runner, *fakeDriver) {
	t.Helper()

	drv := &fakeDriver{}
	kafka.Register("fake", func() kafka.Adapter { return drv })

	cat := catalog.New()
	if err := cat.RegisterProvider(catalog.Provider{Name: "local"}); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := cat.RegisterTable(catalog.Table{
		Name: "iot", Kind: spec.TableSource, Provider: "local",
		Topic: "iot", Format: "json",
		EventTimeColumn: "sensor_ts", EventTimeUnit: "micros",
	}); err != nil {
		t.Fatalf("RegisterTable: %v", err)
	}

	file := spec.File{
		Jobs:   jobs,
		Source: spec.SourceSpec{Driver: "fake", GroupID: "iot-sensor-consumer"},
	}
	runners, err := Compile(file, cat)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return runners, drv
}

func TestCompile_AggregateJob(t *testing.T) {
	runners, drv := compileFixture(t, []spec.JobSpec{{
		Name: "sensor6-hopping", Kind: spec.JobAggregate,
		From: "iot", Into: []string{"sample"},
		GroupBy: "sensor_id", Measure: "sensor_6",
		Window: spec.WindowSpec{Length: "30s", Slide: "1s"}, Threshold: 60,
	}})

	if len(runners) != 1 {
		t.Fatalf("want 1 runner, got %d", len(runners))
	}
	r := runners[0]
	if r.Name() != "sensor6-hopping" || r.Kind() != spec.JobAggregate {
		t.Fatalf("unexpected runner: %s/%s", r.Name(), r.Kind())
	}
	if r.RunID() == "" {
		t.Fatal("runner needs a run id")
	}
	if len(drv.cfg.Topics) != 1 || drv.cfg.Topics[0] != "iot" {
		t.Fatalf("driver should consume the source table's topic, got %v", drv.cfg.Topics)
	}
	if drv.cfg.GroupID != "iot-sensor-consumer" {
		t.Fatalf("single job keeps the declared group id, got %q", drv.cfg.GroupID)
	}
}

func TestCompile_SelectJobsForceEndToEndCommits(t *testing.T) {
	_, drv := compileFixture(t, []spec.JobSpec{{
		Name: "peek", Kind: spec.JobSelect, From: "iot", Into: []string{"sample"},
	}})
	if drv.cfg.CommitMode != kafka.CommitE2E {
		t.Fatalf("select jobs must commit end to end, got %q", drv.cfg.CommitMode)
	}

	_, drv = compileFixture(t, []spec.JobSpec{{
		Name: "agg", Kind: spec.JobAggregate, From: "iot", Into: []string{"sample"},
		GroupBy: "sensor_id", Measure: "sensor_6",
		Window: spec.WindowSpec{Length: "30s", Slide: "1s"},
	}})
	if drv.cfg.CommitMode == kafka.CommitE2E {
		t.Fatalf("aggregate jobs keep the configured commit mode, got %q", drv.cfg.CommitMode)
	}
}

func TestCompile_Validation(t *testing.T) {
	cases := []spec.JobSpec{
		// unknown source table
		{Name: "j", Kind: spec.JobAggregate, From: "ghost", Into: []string{"sample"},
			GroupBy: "k", Measure: "v", Window: spec.WindowSpec{Length: "30s", Slide: "1s"}},
		// missing window
		{Name: "j", Kind: spec.JobAggregate, From: "iot", Into: []string{"sample"},
			GroupBy: "k", Measure: "v"},
		// missing group_by
		{Name: "j", Kind: spec.JobAggregate, From: "iot", Into: []string{"sample"},
			Measure: "v", Window: spec.WindowSpec{Length: "30s", Slide: "1s"}},
		// slide longer than length
		{Name: "j", Kind: spec.JobAggregate, From: "iot", Into: []string{"sample"},
			GroupBy: "k", Measure: "v", Window: spec.WindowSpec{Length: "1s", Slide: "30s"}},
		// no sinks
		{Name: "j", Kind: spec.JobSelect, From: "iot"},
		// bad predicate op
		{Name: "j", Kind: spec.JobSelect, From: "iot", Into: []string{"sample"},
			Where: &spec.PredicateSpec{Column: "sensor_6", Op: "matches", Value: 1}},
		// unknown kind
		{Name: "j", Kind: "explain", From: "iot", Into: []string{"sample"}},
	}

	drv := &fakeDriver{}
	kafka.Register("fake", func() kafka.Adapter { return drv })
	cat := catalog.New()
	_ = cat.RegisterProvider(catalog.Provider{Name: "local"})
	_ = cat.RegisterTable(catalog.Table{
		Name: "iot", Kind: spec.TableSource, Provider: "local",
		Topic: "iot", Format: "json", EventTimeColumn: "sensor_ts",
	})

	for i, js := range cases {
		file := spec.File{Jobs: []spec.JobSpec{js}, Source: spec.SourceSpec{Driver: "fake"}}
		if _, err := Compile(file, cat); err == nil {
			t.Fatalf("case %d: expected compile error", i)
		}
	}
}

func TestCompile_MultipleJobsGetDistinctGroups(t *testing.T) {
	drv := &fakeDriver{}
	kafka.Register("fake", func() kafka.Adapter { return drv })
	cat := catalog.New()
	_ = cat.RegisterProvider(catalog.Provider{Name: "local"})
	_ = cat.RegisterTable(catalog.Table{
		Name: "iot", Kind: spec.TableSource, Provider: "local",
		Topic: "iot", Format: "json", EventTimeColumn: "sensor_ts",
	})

	file := spec.File{
		Jobs: []spec.JobSpec{
			{Name: "a", Kind: spec.JobSelect, From: "iot", Into: []string{"sample"}},
			{Name: "b", Kind: spec.JobSelect, From: "iot", Into: []string{"sample"}},
		},
		Source: spec.SourceSpec{Driver: "fake", GroupID: "base"},
	}
	if _, err := Compile(file, cat); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// the fake driver is shared, so it holds the last job's config
	if drv.cfg.GroupID != "base-b" {
		t.Fatalf("want per-job group id base-b, got %q", drv.cfg.GroupID)
	}
}
