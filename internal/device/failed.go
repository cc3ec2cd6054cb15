package device

// failedRuntime surfaces a runtime initialization failure through the
// Runtime interface: every operation reports the original error. The factory
// returns it when the preferred runtime cannot initialize, so the caller
// sees the negative device-count sentinel. Substituting a working fallback
// here would let a broken GPU node report healthy.
type failedRuntime struct {
	err error
}

func (rt *failedRuntime) Name() string { return "failed" }

func (rt *failedRuntime) DeviceCount() (int, error) { return 0, rt.err }

func (rt *failedRuntime) Malloc(device int, size int64) (Buffer, error) {
	return nil, rt.err
}

func (rt *failedRuntime) Gemm(device int, a, b, c Buffer, n int) error { return rt.err }

func (rt *failedRuntime) CanAccessPeer(src, dst int) (bool, error) { return false, rt.err }

func (rt *failedRuntime) EnablePeerAccess(src, dst int) error  { return rt.err }
func (rt *failedRuntime) DisablePeerAccess(src, dst int) error { return rt.err }

func (rt *failedRuntime) CopyPeer(dst Buffer, dstDev int, src Buffer, srcDev int, size int64) error {
	return rt.err
}

func (rt *failedRuntime) Synchronize(device int) error { return rt.err }
func (rt *failedRuntime) Close() error                 { return nil }
