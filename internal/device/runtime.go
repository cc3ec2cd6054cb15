package device

import "errors"

var (
	// ErrNotAvailable is returned by a runtime constructor when the
	// underlying driver stack cannot be initialized on this host.
	ErrNotAvailable = errors.New("device runtime not available")

	// ErrOutOfMemory is returned by Malloc when the device cannot satisfy
	// the requested allocation.
	ErrOutOfMemory = errors.New("device memory allocation failed")
)

// Buffer is an opaque device-resident allocation. A buffer is owned by the
// call that allocated it and must be freed before that call returns.
type Buffer interface {
	// Free releases the allocation. Freeing a buffer twice is an error.
	Free() error
}

// Runtime abstracts the device primitives the pulse engine needs. All
// operations are synchronous from the caller's point of view except Gemm and
// CopyPeer, which may enqueue work; Synchronize blocks until the device has
// drained everything previously enqueued for it.
//
// Implementations classify their native failures: allocation exhaustion is
// reported as an error wrapping ErrOutOfMemory, everything else as a plain
// error. Device indices are not re-validated beyond what the underlying
// runtime itself rejects.
type Runtime interface {
	// Name identifies the runtime implementation ("cuda", "sim").
	Name() string

	// DeviceCount returns the number of visible devices. Zero devices is a
	// valid result, not an error; an error means the runtime itself could
	// not initialize.
	DeviceCount() (int, error)

	// Malloc allocates size bytes on the given device.
	Malloc(device int, size int64) (Buffer, error)

	// Gemm enqueues one n×n single-precision matrix multiply c = a×b on the
	// given device. All three buffers must live on that device and hold at
	// least n*n float32 elements.
	Gemm(device int, a, b, c Buffer, n int) error

	// CanAccessPeer reports whether dst's memory is directly addressable
	// from src's context. The capability is symmetric at the hardware level.
	CanAccessPeer(src, dst int) (bool, error)

	// EnablePeerAccess maps dst's memory into src's context. Must be paired
	// with DisablePeerAccess before the probing call returns.
	EnablePeerAccess(src, dst int) error

	// DisablePeerAccess revokes a prior EnablePeerAccess.
	DisablePeerAccess(src, dst int) error

	// CopyPeer enqueues a device-to-device copy of size bytes from src on
	// srcDev to dst on dstDev. Peer access must be enabled for the pair.
	CopyPeer(dst Buffer, dstDev int, src Buffer, srcDev int, size int64) error

	// Synchronize blocks until the device has completed all enqueued work.
	Synchronize(device int) error

	// Close tears down the runtime. Called once at process exit.
	Close() error
}
