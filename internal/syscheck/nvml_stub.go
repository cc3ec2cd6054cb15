//go:build !linux || !cgo

package syscheck

// Snapshot is a stub on platforms without NVML support.
func Snapshot() ([]DeviceStat, error) {
	return nil, ErrUnavailable
}
