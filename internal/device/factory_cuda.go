//go:build cuda

package device

import "go.uber.org/zap"

// NewRuntime returns the CUDA runtime. A driver stack that cannot initialize
// is surfaced as a runtime whose every operation fails, which the engine
// reports as the negative device-count sentinel. This build exists to check
// real GPUs; falling back to the simulator would report a broken node
// healthy.
func NewRuntime(log *zap.Logger) Runtime {
	rt, err := NewCUDARuntime(log)
	if err != nil {
		log.Error("cuda runtime initialization failed", zap.Error(err))
		return &failedRuntime{err: err}
	}
	log.Info("using cuda runtime")
	return rt
}
