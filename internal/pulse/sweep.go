package pulse

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/fxnlabs/gpu-pulse/internal/metrics"
)

// DeviceResult is the sweep verdict for one device.
type DeviceResult struct {
	Device        int32   `json:"device"`
	Status        Status  `json:"status"`
	TFLOPS        float64 `json:"tflops,omitempty"`
	MeanLatencyMs float64 `json:"meanLatencyMs,omitempty"`
	CV            float64 `json:"cv,omitempty"`
	Failure       string  `json:"failure,omitempty"`
}

// LinkResult is the sweep verdict for one ring segment.
type LinkResult struct {
	Src          int32   `json:"src"`
	Dst          int32   `json:"dst"`
	Status       Status  `json:"status"`
	BandwidthGBs float64 `json:"bandwidthGBs,omitempty"`
	Failure      string  `json:"failure,omitempty"`
}

// Report is the result of a full node sweep, consumable as JSON by the
// fleet orchestrator.
type Report struct {
	Healthy     bool           `json:"healthy"`
	Runtime     string         `json:"runtime"`
	DeviceCount int32          `json:"deviceCount"`
	Devices     []DeviceResult `json:"devices,omitempty"`
	Links       []LinkResult   `json:"links,omitempty"`
}

// Sweep runs the full node health check: N compute pulses per device with
// mean/CV statistics, then a peer-bandwidth probe along the ring
// 0→1→…→N-1→0. The ring covers every inter-device link exactly once and
// catches a single broken segment anywhere, including links a star check
// from device 0 would miss. Single-device nodes skip the ring.
//
// maxLatency is the per-device mean-latency ceiling; zero disables the gate
// (the caller passes zero when no calibrated value exists for the detected
// architecture).
func (e *Engine) Sweep(maxLatency time.Duration) *Report {
	report := &Report{Runtime: e.rt.Name()}

	report.DeviceCount = e.DeviceCount()
	if report.DeviceCount < 0 {
		metrics.SweepUnhealthy.WithLabelValues("runtime_init_failed").Inc()
		return report
	}
	if report.DeviceCount == 0 {
		e.log.Warn("no devices visible, nothing to pulse")
		metrics.SweepUnhealthy.WithLabelValues("no_devices").Inc()
		return report
	}

	healthy := true
	for dev := int32(0); dev < report.DeviceCount; dev++ {
		res := e.sweepDevice(dev, maxLatency)
		if res.Failure != "" {
			healthy = false
		}
		report.Devices = append(report.Devices, res)
	}

	if report.DeviceCount > 1 {
		for i := int32(0); i < report.DeviceCount; i++ {
			res := e.sweepLink(i, (i+1)%report.DeviceCount)
			if res.Failure != "" {
				healthy = false
			}
			report.Links = append(report.Links, res)
		}
	}

	report.Healthy = healthy
	return report
}

// sweepDevice runs the configured number of timed pulses on one device and
// gates the mean latency and run-to-run variance.
func (e *Engine) sweepDevice(dev int32, maxLatency time.Duration) DeviceResult {
	res := DeviceResult{Device: dev, Status: StatusOk}
	runs := e.cfg.Workload.ComputeRuns

	seconds := make([]float64, 0, runs)
	for i := 0; i < runs; i++ {
		start := time.Now()
		out := e.RunComputePulse(dev)
		elapsed := time.Since(start)

		if !out.Ok() {
			res.Status = out.Status
			res.Failure = fmt.Sprintf("compute pulse run %d/%d failed (%s)", i+1, runs, out.Status)
			metrics.SweepUnhealthy.WithLabelValues("compute_failed").Inc()
			return res
		}
		res.TFLOPS = out.Measurement
		seconds = append(seconds, elapsed.Seconds())
	}

	mean, cv := runStats(seconds)
	res.MeanLatencyMs = mean * 1e3
	res.CV = cv
	metrics.PulseCV.WithLabelValues(strconv.Itoa(int(dev))).Set(cv)

	if maxLatency > 0 && mean > maxLatency.Seconds() {
		res.Failure = fmt.Sprintf("mean latency %.1fms exceeds %.0fms ceiling",
			res.MeanLatencyMs, maxLatency.Seconds()*1e3)
		metrics.SweepUnhealthy.WithLabelValues("latency_threshold_exceeded").Inc()
		return res
	}
	if runs > 1 && cv > e.cfg.Thresholds.MaxCV {
		res.Failure = fmt.Sprintf("run-to-run variance cv=%.3f exceeds %.2f ceiling (fail-slow pattern)",
			cv, e.cfg.Thresholds.MaxCV)
		metrics.SweepUnhealthy.WithLabelValues("high_variance").Inc()
		return res
	}

	e.log.Info("device swept",
		zap.Int32("device", dev),
		zap.Float64("mean_latency_ms", res.MeanLatencyMs),
		zap.Float64("cv", cv),
		zap.Float64("tflops", res.TFLOPS))
	return res
}

// sweepLink probes one ring segment. The probe itself reports a slow but
// supported link as Ok with the measured number; the sweep is where the
// configured bandwidth floor turns that into a degraded-link failure.
func (e *Engine) sweepLink(src, dst int32) LinkResult {
	res := LinkResult{Src: src, Dst: dst}

	out := e.RunPeerCheck(src, dst)
	res.Status = out.Status
	if !out.Ok() {
		res.Failure = fmt.Sprintf("peer check %d→%d failed (%s)", src, dst, out.Status)
		metrics.SweepUnhealthy.WithLabelValues("peer_link_failed").Inc()
		return res
	}

	res.BandwidthGBs = out.Measurement
	if floor := e.cfg.Thresholds.MinPeerBandwidthGBs; out.Measurement < floor {
		res.Failure = fmt.Sprintf("link %d→%d degraded: %.2f GB/s below %.1f GB/s floor",
			src, dst, out.Measurement, floor)
		metrics.SweepUnhealthy.WithLabelValues("peer_link_degraded").Inc()
	}
	return res
}

// runStats returns the mean and coefficient of variation (σ/μ) of the run
// durations in seconds.
func runStats(seconds []float64) (mean, cv float64) {
	mean = stat.Mean(seconds, nil)
	if len(seconds) > 1 && mean > 0 {
		cv = stat.PopStdDev(seconds, nil) / mean
	}
	return mean, cv
}
