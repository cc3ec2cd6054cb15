//go:build !cuda

package device

import "go.uber.org/zap"

// CUDARuntime is a stub when built without the cuda tag. Compile with
// -tags cuda on a GPU host to get the real implementation.
type CUDARuntime struct{}

// NewCUDARuntime always reports the runtime as unavailable in this build.
func NewCUDARuntime(log *zap.Logger) (*CUDARuntime, error) {
	return nil, ErrNotAvailable
}

func (rt *CUDARuntime) Name() string { return "cuda" }

func (rt *CUDARuntime) DeviceCount() (int, error) { return 0, ErrNotAvailable }

func (rt *CUDARuntime) Malloc(device int, size int64) (Buffer, error) {
	return nil, ErrNotAvailable
}

func (rt *CUDARuntime) Gemm(device int, a, b, c Buffer, n int) error {
	return ErrNotAvailable
}

func (rt *CUDARuntime) CanAccessPeer(src, dst int) (bool, error) {
	return false, ErrNotAvailable
}

func (rt *CUDARuntime) EnablePeerAccess(src, dst int) error  { return ErrNotAvailable }
func (rt *CUDARuntime) DisablePeerAccess(src, dst int) error { return ErrNotAvailable }

func (rt *CUDARuntime) CopyPeer(dst Buffer, dstDev int, src Buffer, srcDev int, size int64) error {
	return ErrNotAvailable
}

func (rt *CUDARuntime) Synchronize(device int) error { return ErrNotAvailable }
func (rt *CUDARuntime) Close() error                 { return nil }
