package pulse

import (
	"errors"

	"github.com/fxnlabs/gpu-pulse/internal/device"
)

// Status is the closed set of benchmark outcomes. The numeric values are
// part of the boundary contract with the fleet orchestrator and must never
// change.
type Status int32

const (
	StatusOk              Status = 0
	StatusRuntimeError    Status = 1
	StatusOutOfMemory     Status = 2
	StatusPeerUnsupported Status = 3
)

// String returns the snake_case label used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusRuntimeError:
		return "runtime_error"
	case StatusOutOfMemory:
		return "out_of_memory"
	case StatusPeerUnsupported:
		return "peer_unsupported"
	default:
		return "unknown"
	}
}

// Outcome is the result of one benchmark call. Measurement is meaningful
// only when Status is StatusOk: TFLOP/s for the compute pulse, GB/s for the
// peer probe. Outcomes carry no state between calls.
type Outcome struct {
	Status      Status  `json:"status"`
	Measurement float64 `json:"measurement,omitempty"`
}

// Ok reports whether the measurement completed and the number is valid.
func (o Outcome) Ok() bool { return o.Status == StatusOk }

func okOutcome(measurement float64) Outcome {
	return Outcome{Status: StatusOk, Measurement: measurement}
}

func failedOutcome(err error) Outcome {
	return Outcome{Status: classify(err)}
}

// classify maps a runtime failure onto the nearest taxonomy bucket.
// Allocation exhaustion becomes OutOfMemory; everything else is a
// RuntimeError. Peer capability is decided before any error can occur, so
// PeerUnsupported never comes through here.
func classify(err error) Status {
	if errors.Is(err, device.ErrOutOfMemory) {
		return StatusOutOfMemory
	}
	return StatusRuntimeError
}
