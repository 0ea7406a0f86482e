// Package telemetry holds the engine's Prometheus collectors and the
// /metrics endpoint.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_records_read_total",
		Help: "Records consumed from source topics.",
	}, []string{"topic"})

	RecordsLate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_records_late_total",
		Help: "Records dropped because their event time was behind the watermark.",
	}, []string{"job"})

	RecordsDecodeFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_records_decode_failed_total",
		Help: "Records that did not match the source table schema.",
	}, []string{"job"})

	WindowsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_windows_closed_total",
		Help: "Hopping windows finalized by watermark advance.",
	}, []string{"job"})

	ResultsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_results_emitted_total",
		Help: "Result rows pushed to sinks.",
	}, []string{"job"})

	Watermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weir_watermark_seconds",
		Help: "Current stream watermark as a unix timestamp.",
	}, []string{"job"})

	AcksResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weir_acks_resolved_total",
		Help: "Source checkpoints resolved by downstream acks.",
	}, []string{"driver"})
)

func Expose(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()
}
