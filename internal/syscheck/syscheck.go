// Package syscheck gates the pulse workload with driver-level device state:
// an idle-temperature check before the sweep and an SM clock check after it.
// Both degrade gracefully when NVML is unavailable: the pulse itself is the
// authoritative signal, these checks only catch disqualifiers around it.
package syscheck

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable means NVML cannot be used on this host or build.
var ErrUnavailable = errors.New("nvml unavailable")

// DeviceStat is one device's driver-reported state.
type DeviceStat struct {
	Name          string
	TempC         uint32
	SMClockMHz    uint32
	MaxSMClockMHz uint32
}

// Preflight checks every device for hard disqualifiers before the workload
// runs. A device still hot at idle has not finished thermal recovery and
// would produce a derated, misleading measurement.
func Preflight(stats []DeviceStat, maxIdleTempC uint32) error {
	for i, s := range stats {
		if s.TempC > maxIdleTempC {
			return fmt.Errorf("pre-flight device %d: idle temperature %d°C exceeds %d°C ceiling (thermal recovery incomplete)",
				i, s.TempC, maxIdleTempC)
		}
	}
	return nil
}

// ValidateClocks checks every device after the workload to confirm it
// reached full clocks under load. Catches clocks stuck in a power-derated
// state, which lets a GEMM pass while real training workloads stall.
func ValidateClocks(stats []DeviceStat, minFraction float64) error {
	for i, s := range stats {
		if s.MaxSMClockMHz == 0 {
			continue // driver did not report a maximum
		}
		floor := uint32(float64(s.MaxSMClockMHz) * minFraction)
		if s.SMClockMHz < floor {
			return fmt.Errorf("post-pulse device %d: SM clock %dMHz below %.0f%% of max %dMHz (stuck power-derated under load)",
				i, s.SMClockMHz, minFraction*100, s.MaxSMClockMHz)
		}
	}
	return nil
}

// DetectThreshold maps a device name to a calibrated mean-latency ceiling
// for the 2048×2048 single-precision pulse at full clocks, with roughly 4×
// headroom over the nominal figure so transient contention does not
// quarantine healthy hardware. Unrecognized hardware falls back to a loose
// 500ms ceiling that still catches order-of-magnitude degradation.
func DetectThreshold(name string) time.Duration {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "B200") || strings.Contains(upper, "GB200"):
		return 15 * time.Millisecond
	case strings.Contains(upper, "H100") || strings.Contains(upper, "H200"):
		return 35 * time.Millisecond
	case strings.Contains(upper, "A100"):
		return 100 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}
