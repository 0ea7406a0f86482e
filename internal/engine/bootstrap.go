package engine

import (
	"context"
	"fmt"

	"weir/internal/api"
	"weir/internal/catalog"
	"weir/internal/config"
	"weir/internal/job"
	"weir/internal/logging"
	"weir/internal/telemetry"
)

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. job file → catalog
	file, err := config.LoadJobFile(cfg.JobFile)
	if err != nil {
		return nil, fmt.Errorf("job file: %w", err)
	}
	cat, err := catalog.FromSpec(file, config.LoadKafkaConfig)
	if err != nil {
		return nil, err
	}
	if cfg.VerifyTopics {
		for _, t := range cat.Tables() {
			if err := cat.VerifyTopic(t.Name); err != nil {
				return nil, err
			}
			logging.L().Info("topic verified", "table", t.Name, "topic", t.Topic)
		}
	}

	// 2. compile and start jobs
	runners, err := job.Compile(file, cat)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	for _, r := range runners {
		if err := r.Start(ctx); err != nil {
			return nil, fmt.Errorf("start %q: %w", r.Name(), err)
		}
		logging.L().Info("job started", "job", r.Name(), "kind", r.Kind(), "run_id", r.RunID())
	}

	// 3. metrics + status API
	telemetry.Expose(cfg.MetricsPort)
	srv := api.New(cfg.APIPort, cat, runners)

	return &Engine{
		api:     srv,
		runners: runners,
	}, nil
}
