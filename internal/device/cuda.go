//go:build cuda

package device

/*
#cgo CFLAGS: -I${SRCDIR}/../../cuda
#cgo LDFLAGS: -L${SRCDIR}/../../cuda -lgpupulse -lcudart
#include "pulse.h"
*/
import "C"
import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

// CUDARuntime implements Runtime over the thin C shim in cuda/. Every
// primitive re-selects the target device, so no context state is shared
// across calls beyond the process-wide CUDA runtime itself.
type CUDARuntime struct {
	log *zap.Logger
}

// NewCUDARuntime probes the CUDA driver stack. Zero visible devices is a
// valid runtime; a driver that cannot initialize is not.
func NewCUDARuntime(log *zap.Logger) (*CUDARuntime, error) {
	n := int(C.pulse_device_count())
	if n < 0 {
		return nil, fmt.Errorf("cuda driver initialization failed: %w", ErrNotAvailable)
	}
	log = log.Named("cuda")
	log.Info("cuda runtime initialized", zap.Int("devices", n))
	return &CUDARuntime{log: log}, nil
}

type cudaBuffer struct {
	ptr    unsafe.Pointer
	device int
}

func (b *cudaBuffer) Free() error {
	if b.ptr == nil {
		return fmt.Errorf("device %d: buffer already freed", b.device)
	}
	rc := C.pulse_free(C.int(b.device), b.ptr)
	b.ptr = nil
	return rcErr("free", b.device, rc)
}

func (rt *CUDARuntime) Name() string { return "cuda" }

func (rt *CUDARuntime) DeviceCount() (int, error) {
	n := int(C.pulse_device_count())
	if n < 0 {
		return 0, fmt.Errorf("cuda device enumeration failed: %w", ErrNotAvailable)
	}
	return n, nil
}

func (rt *CUDARuntime) Malloc(device int, size int64) (Buffer, error) {
	var ptr unsafe.Pointer
	rc := C.pulse_malloc(C.int(device), C.size_t(size), &ptr)
	if err := rcErr("malloc", device, rc); err != nil {
		return nil, err
	}
	return &cudaBuffer{ptr: ptr, device: device}, nil
}

func (rt *CUDARuntime) Gemm(device int, a, b, c Buffer, n int) error {
	ab, err := cudaBuf(a, device)
	if err != nil {
		return err
	}
	bb, err := cudaBuf(b, device)
	if err != nil {
		return err
	}
	cb, err := cudaBuf(c, device)
	if err != nil {
		return err
	}
	rc := C.pulse_gemm(C.int(device),
		(*C.float)(ab.ptr), (*C.float)(bb.ptr), (*C.float)(cb.ptr), C.int(n))
	return rcErr("gemm", device, rc)
}

func (rt *CUDARuntime) CanAccessPeer(src, dst int) (bool, error) {
	switch can := C.pulse_can_access_peer(C.int(src), C.int(dst)); can {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("peer capability query failed for devices %d and %d", src, dst)
	}
}

func (rt *CUDARuntime) EnablePeerAccess(src, dst int) error {
	return rcErr("enable peer access", src, C.pulse_enable_peer(C.int(src), C.int(dst)))
}

func (rt *CUDARuntime) DisablePeerAccess(src, dst int) error {
	return rcErr("disable peer access", src, C.pulse_disable_peer(C.int(src), C.int(dst)))
}

func (rt *CUDARuntime) CopyPeer(dst Buffer, dstDev int, src Buffer, srcDev int, size int64) error {
	db, err := cudaBuf(dst, dstDev)
	if err != nil {
		return err
	}
	sb, err := cudaBuf(src, srcDev)
	if err != nil {
		return err
	}
	rc := C.pulse_copy_peer(db.ptr, C.int(dstDev), sb.ptr, C.int(srcDev), C.size_t(size))
	return rcErr("peer copy", srcDev, rc)
}

func (rt *CUDARuntime) Synchronize(device int) error {
	return rcErr("synchronize", device, C.pulse_sync(C.int(device)))
}

func (rt *CUDARuntime) Close() error { return nil }

// rcErr maps a shim return code onto the runtime error taxonomy.
func rcErr(op string, device int, rc C.int) error {
	switch rc {
	case C.PULSE_OK:
		return nil
	case C.PULSE_OOM:
		return fmt.Errorf("device %d: %s: %w", device, op, ErrOutOfMemory)
	default:
		return fmt.Errorf("device %d: %s failed (rc=%d)", device, op, int(rc))
	}
}

func cudaBuf(b Buffer, device int) (*cudaBuffer, error) {
	cb, ok := b.(*cudaBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer does not belong to the cuda runtime")
	}
	if cb.ptr == nil {
		return nil, fmt.Errorf("device %d: use of freed buffer", device)
	}
	if cb.device != device {
		return nil, fmt.Errorf("buffer lives on device %d, not %d", cb.device, device)
	}
	return cb, nil
}
