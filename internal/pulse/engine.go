// Package pulse implements the GPU health-check engine: device inventory, a
// warm-up/measure compute benchmark, a peer-to-peer bandwidth probe and the
// node sweep that drives both across every device and ring link.
package pulse

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/internal/config"
	"github.com/fxnlabs/gpu-pulse/internal/device"
)

// Engine runs pulse benchmarks against one device runtime. Every benchmark
// call is synchronous, blocking and independent: device memory allocated
// within a call never outlives it, and no state is shared across calls
// except the process-wide runtime itself. Concurrent calls targeting
// different devices are safe; serializing calls against the same device is
// the caller's responsibility.
type Engine struct {
	rt  device.Runtime
	cfg *config.Config
	log *zap.Logger
}

func NewEngine(rt device.Runtime, cfg *config.Config, log *zap.Logger) *Engine {
	return &Engine{rt: rt, cfg: cfg, log: log.Named("pulse")}
}

// Runtime exposes the underlying device runtime, mainly so the CLI can
// report which implementation is active.
func (e *Engine) Runtime() device.Runtime { return e.rt }

// DeviceCount returns the number of visible accelerators, or -1 when the
// underlying runtime cannot initialize. Zero devices is a valid result.
// This is the only operation guaranteed to succeed with no devices present,
// and it bounds the device indices valid for the benchmark calls.
func (e *Engine) DeviceCount() int32 {
	n, err := e.rt.DeviceCount()
	if err != nil {
		e.log.Warn("device enumeration failed", zap.Error(err))
		return -1
	}
	return int32(n)
}
