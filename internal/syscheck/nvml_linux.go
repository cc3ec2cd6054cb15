//go:build linux && cgo

package syscheck

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

var initOnce sync.Once
var initErr error

func ensureInit() error {
	initOnce.Do(func() {
		if ret := nvml.Init(); ret != nvml.SUCCESS {
			initErr = fmt.Errorf("%w: %s", ErrUnavailable, nvml.ErrorString(ret))
		}
	})
	return initErr
}

// wrap converts an nvml return value into a Go error.
func wrap(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return errors.New(nvml.ErrorString(ret))
}

// Snapshot reads name, temperature and SM clocks for every visible device.
// NVML is initialized lazily on first use and stays initialized for the
// process lifetime.
func Snapshot() ([]DeviceStat, error) {
	if err := ensureInit(); err != nil {
		return nil, err
	}

	count, ret := nvml.DeviceGetCount()
	if err := wrap(ret); err != nil {
		return nil, fmt.Errorf("cannot count devices: %w", err)
	}

	stats := make([]DeviceStat, 0, count)
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if err := wrap(ret); err != nil {
			return nil, fmt.Errorf("cannot get handle for device %d: %w", i, err)
		}

		var s DeviceStat
		// Individual queries may be unsupported on some SKUs; a zero field
		// is treated as "not reported" by the checks, not as a failure.
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			s.Name = name
		}
		if temp, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			s.TempC = temp
		}
		if clock, ret := dev.GetClockInfo(nvml.CLOCK_SM); ret == nvml.SUCCESS {
			s.SMClockMHz = clock
		}
		if clock, ret := dev.GetMaxClockInfo(nvml.CLOCK_SM); ret == nvml.SUCCESS {
			s.MaxSMClockMHz = clock
		}
		stats = append(stats, s)
	}
	return stats, nil
}
