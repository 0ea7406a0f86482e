package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"weir/internal/engine"
	"weir/internal/logging"
	_ "weir/sink/kafka"
	_ "weir/sink/sample"
	"weir/source/kafka"
)

func main() {
	logging.InitFromEnv()

	var cfg engine.Config

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the jobs declared in a job file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			kafka.Register("sarama", func() kafka.Adapter { return &kafka.SaramaDriver{} })
			kafka.Register("kafkago", func() kafka.Adapter { return &kafka.KafkaGoDriver{} })

			e, err := engine.Bootstrap(ctx, cfg)
			if err != nil {
				return err
			}
			return e.Run(ctx)
		},
	}
	serve.Flags().StringVar(&cfg.JobFile, "job", "job.yml", "path to the job YAML")
	serve.Flags().IntVar(&cfg.APIPort, "api-port", 7070, "status API port")
	serve.Flags().IntVar(&cfg.MetricsPort, "metrics-port", 9100, "prometheus port")
	serve.Flags().BoolVar(&cfg.VerifyTopics, "verify-topics", false, "check table topics exist before starting")

	root := &cobra.Command{
		Use:          "weir",
		Short:        "weir runs windowed streaming aggregations over Kafka topics",
		SilenceUsage: true,
	}
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		logging.L().Error("engine", "err", err)
		os.Exit(1)
	}
}
