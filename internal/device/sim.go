package device

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// SimConfig describes the topology of a simulated node.
type SimConfig struct {
	// Devices is the number of simulated accelerators.
	Devices int

	// MemoryBytes is the per-device allocation capacity. Zero means
	// unlimited (host memory is the real bound).
	MemoryBytes int64

	// Peers lists the device pairs connected by a peer link. Links are
	// symmetric; listing (0,1) also connects (1,0).
	Peers [][2]int
}

// SimRuntime is a host-memory implementation of Runtime. It backs the CPU
// fallback path on hosts without CUDA and is the test vehicle for the pulse
// engine: allocation accounting is byte-exact, peer topology is configurable
// and failures can be injected per operation.
type SimRuntime struct {
	mu      sync.Mutex
	log     *zap.Logger
	devices []*simDevice
	peers   map[[2]int]bool
	enabled map[[2]int]bool

	// Fault injection, used by tests. When set, the corresponding operation
	// fails with the given error instead of executing.
	GemmErr error
	CopyErr error
	SyncErr error

	// CopyDelay stretches every peer copy, letting tests model a degraded
	// link with a deterministic bandwidth ceiling.
	CopyDelay time.Duration
}

type simDevice struct {
	capacity  int64
	allocated int64
}

type simBuffer struct {
	rt     *SimRuntime
	device int
	size   int64
	data   []float32
	freed  bool
}

// NewSimRuntime builds a simulated runtime from cfg. A zero-device config is
// valid and models a host with no accelerators attached.
func NewSimRuntime(cfg SimConfig, log *zap.Logger) *SimRuntime {
	rt := &SimRuntime{
		log:     log.Named("sim"),
		devices: make([]*simDevice, cfg.Devices),
		peers:   make(map[[2]int]bool),
		enabled: make(map[[2]int]bool),
	}
	for i := range rt.devices {
		rt.devices[i] = &simDevice{capacity: cfg.MemoryBytes}
	}
	for _, p := range cfg.Peers {
		rt.peers[pairKey(p[0], p[1])] = true
	}
	return rt
}

// pairKey normalizes a device pair so link state is stored once per link.
func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func (rt *SimRuntime) Name() string { return "sim" }

func (rt *SimRuntime) DeviceCount() (int, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.devices), nil
}

func (rt *SimRuntime) Malloc(device int, size int64) (Buffer, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	dev, err := rt.device(device)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}
	if dev.capacity > 0 && dev.allocated+size > dev.capacity {
		return nil, fmt.Errorf("device %d: %d of %d bytes in use, need %d: %w",
			device, dev.allocated, dev.capacity, size, ErrOutOfMemory)
	}
	dev.allocated += size
	return &simBuffer{
		rt:     rt,
		device: device,
		size:   size,
		data:   make([]float32, (size+3)/4),
	}, nil
}

func (b *simBuffer) Free() error {
	b.rt.mu.Lock()
	defer b.rt.mu.Unlock()

	if b.freed {
		return fmt.Errorf("device %d: buffer already freed", b.device)
	}
	b.freed = true
	b.rt.devices[b.device].allocated -= b.size
	b.data = nil
	return nil
}

func (rt *SimRuntime) Gemm(device int, a, b, c Buffer, n int) error {
	rt.mu.Lock()
	if _, err := rt.device(device); err != nil {
		rt.mu.Unlock()
		return err
	}
	if rt.GemmErr != nil {
		rt.mu.Unlock()
		return rt.GemmErr
	}
	ab, err := rt.simBuf(a, device, n)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	bb, err := rt.simBuf(b, device, n)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	cb, err := rt.simBuf(c, device, n)
	if err != nil {
		rt.mu.Unlock()
		return err
	}
	rt.mu.Unlock()

	// The multiply runs outside the lock so concurrent calls targeting
	// different devices may execute in parallel, same as real hardware.
	gemm(ab.data, bb.data, cb.data, n)
	return nil
}

// gemm computes c = a×b for square n×n row-major float32 matrices.
func gemm(a, b, c []float32, n int) {
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: n, Cols: n, Stride: n, Data: a[:n*n]},
		blas32.General{Rows: n, Cols: n, Stride: n, Data: b[:n*n]},
		0,
		blas32.General{Rows: n, Cols: n, Stride: n, Data: c[:n*n]},
	)
}

func (rt *SimRuntime) CanAccessPeer(src, dst int) (bool, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, err := rt.device(src); err != nil {
		return false, err
	}
	if _, err := rt.device(dst); err != nil {
		return false, err
	}
	return rt.peers[pairKey(src, dst)], nil
}

func (rt *SimRuntime) EnablePeerAccess(src, dst int) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.peers[pairKey(src, dst)] {
		return fmt.Errorf("devices %d and %d are not peer capable", src, dst)
	}
	rt.enabled[pairKey(src, dst)] = true
	return nil
}

func (rt *SimRuntime) DisablePeerAccess(src, dst int) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.enabled[pairKey(src, dst)] {
		return fmt.Errorf("peer access between %d and %d is not enabled", src, dst)
	}
	delete(rt.enabled, pairKey(src, dst))
	return nil
}

func (rt *SimRuntime) CopyPeer(dst Buffer, dstDev int, src Buffer, srcDev int, size int64) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.CopyErr != nil {
		return rt.CopyErr
	}
	if !rt.enabled[pairKey(srcDev, dstDev)] {
		return fmt.Errorf("peer access between %d and %d is not enabled", srcDev, dstDev)
	}
	sb, err := rt.simBuf(src, srcDev, 0)
	if err != nil {
		return err
	}
	db, err := rt.simBuf(dst, dstDev, 0)
	if err != nil {
		return err
	}
	if size > sb.size || size > db.size {
		return fmt.Errorf("copy of %d bytes exceeds buffer size", size)
	}
	if rt.CopyDelay > 0 {
		time.Sleep(rt.CopyDelay)
	}
	copy(db.data[:size/4], sb.data[:size/4])
	return nil
}

func (rt *SimRuntime) Synchronize(device int) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.SyncErr != nil {
		return rt.SyncErr
	}
	_, err := rt.device(device)
	return err
}

func (rt *SimRuntime) Close() error { return nil }

// AllocatedBytes reports the bytes currently allocated on a device. Tests
// use it to verify that no allocation outlives its originating call.
func (rt *SimRuntime) AllocatedBytes(device int) int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.devices[device].allocated
}

// PeerEnabled reports whether peer access is currently enabled for a pair.
// Tests use it to verify that enablement never leaks past a probe.
func (rt *SimRuntime) PeerEnabled(src, dst int) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.enabled[pairKey(src, dst)]
}

func (rt *SimRuntime) device(i int) (*simDevice, error) {
	if i < 0 || i >= len(rt.devices) {
		return nil, fmt.Errorf("device index %d out of range [0, %d)", i, len(rt.devices))
	}
	return rt.devices[i], nil
}

func (rt *SimRuntime) simBuf(b Buffer, device int, n int) (*simBuffer, error) {
	sb, ok := b.(*simBuffer)
	if !ok {
		return nil, fmt.Errorf("buffer does not belong to the sim runtime")
	}
	if sb.freed {
		return nil, fmt.Errorf("device %d: use of freed buffer", device)
	}
	if sb.device != device {
		return nil, fmt.Errorf("buffer lives on device %d, not %d", sb.device, device)
	}
	if n > 0 && len(sb.data) < n*n {
		return nil, fmt.Errorf("buffer holds %d elements, gemm needs %d", len(sb.data), n*n)
	}
	return sb, nil
}
