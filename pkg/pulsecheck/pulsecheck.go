// Package pulsecheck is the in-process boundary surface for a fleet
// health-check orchestrator. It wraps the pulse engine behind three
// synchronous calls with a stable int32 status taxonomy, so callers never
// touch device APIs directly.
//
// The underlying device runtime is process-wide state: it is initialized
// lazily on the first call, never re-initialized mid-process and torn down
// at process exit. Callers must bounds-check device indices against the
// latest DeviceCount result; out-of-range indices are a contract violation
// surfaced as RuntimeError by whatever the runtime rejects, not as a
// distinct taxonomy case.
package pulsecheck

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/internal/config"
	"github.com/fxnlabs/gpu-pulse/internal/device"
	"github.com/fxnlabs/gpu-pulse/internal/pulse"
)

// Status is the closed outcome taxonomy. Values are stable across releases;
// callers must treat unrecognized values as a contract violation rather than
// a new case to ignore.
type Status int32

const (
	Ok              Status = 0
	RuntimeError    Status = 1
	OutOfMemory     Status = 2
	PeerUnsupported Status = 3
)

var (
	once   sync.Once
	engine *pulse.Engine

	// newRuntime is swapped by tests to run the boundary against a
	// simulated topology.
	newRuntime = func(log *zap.Logger) device.Runtime { return device.NewRuntime(log) }
)

func getEngine() *pulse.Engine {
	once.Do(func() {
		// Embedded library surface: quiet by default, tunable through the
		// same environment overrides the CLI honors.
		log := zap.NewNop()
		engine = pulse.NewEngine(newRuntime(log), config.Default(), log)
	})
	return engine
}

// DeviceCount returns the number of visible accelerators, 0 when none are
// attached, or a negative value when the device runtime cannot initialize.
// This is the only call guaranteed to succeed with zero devices present.
func DeviceCount() int32 {
	return getEngine().DeviceCount()
}

// RunComputePulse runs the warm-up/measure GEMM benchmark on one device and
// returns its status. PeerUnsupported is not reachable from this operation.
func RunComputePulse(deviceIndex int32) Status {
	return Status(getEngine().RunComputePulse(deviceIndex).Status)
}

// RunPeerCheck measures unidirectional peer bandwidth from srcDevice to
// dstDevice. The bandwidth figure (GB/s) is meaningful only when the status
// is Ok.
func RunPeerCheck(srcDevice, dstDevice int32) (Status, float64) {
	out := getEngine().RunPeerCheck(srcDevice, dstDevice)
	return Status(out.Status), out.Measurement
}
