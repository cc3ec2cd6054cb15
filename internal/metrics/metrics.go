// Package metrics registers the Prometheus collectors for the pulse engine.
// Import this package anywhere in the binary to ensure collectors are
// registered with the default registry before promhttp.Handler is called.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PulseDuration is a per-device histogram of the timed GEMM pass.
	// Buckets span 1ms → ~131s to cover both a healthy H100 (~10ms) and a
	// worst-case thermal stall without underflow or overflow.
	PulseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpu_pulse_duration_seconds",
			Help:    "Wall-clock duration of the timed compute pulse per device.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 18),
		},
		[]string{"device"},
	)

	// PulseThroughput is the derived throughput of the last compute pulse.
	PulseThroughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpu_pulse_tflops",
			Help: "Throughput of the last compute pulse per device in TFLOP/s.",
		},
		[]string{"device"},
	)

	// PulseCV is the coefficient of variation (σ/μ) across the timed runs of
	// the last sweep. A deterministic GEMM workload on healthy hardware stays
	// well below 5%; sustained high CV is the fail-slow signature.
	PulseCV = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpu_pulse_cv",
			Help: "Coefficient of variation across compute pulse runs per device.",
		},
		[]string{"device"},
	)

	// PeerBandwidth is the measured unidirectional peer-to-peer bandwidth of
	// the last probe for a device pair.
	PeerBandwidth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpu_pulse_p2p_bandwidth_gbs",
			Help: "Measured unidirectional peer-to-peer bandwidth in GB/s.",
		},
		[]string{"src", "dst"},
	)

	// Outcomes counts benchmark outcomes by check ("compute", "peer") and
	// status ("ok", "runtime_error", "out_of_memory", "peer_unsupported").
	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_pulse_outcomes_total",
			Help: "Total benchmark outcomes by check and status.",
		},
		[]string{"check", "status"},
	)

	// SweepUnhealthy counts sweeps that marked the node unhealthy, by reason.
	//
	// Observed reason values:
	//   compute_failed, latency_threshold_exceeded, high_variance,
	//   peer_link_failed, peer_link_degraded, preflight_failed,
	//   clock_validation_failed, no_devices, runtime_init_failed
	SweepUnhealthy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gpu_pulse_sweep_unhealthy_total",
			Help: "Total sweeps that marked the node unhealthy, by reason.",
		},
		[]string{"reason"},
	)
)
