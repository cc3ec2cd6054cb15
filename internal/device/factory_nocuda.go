//go:build !cuda

package device

import "go.uber.org/zap"

// NewRuntime returns the best runtime this build supports. Without the cuda
// build tag the only option is the simulated host-memory runtime, which
// reports honest numbers for the protocol but says nothing about real GPUs.
func NewRuntime(log *zap.Logger) Runtime {
	log.Info("compiled without cuda support, using simulated runtime")
	return NewSimRuntime(SimConfig{Devices: 1}, log)
}
