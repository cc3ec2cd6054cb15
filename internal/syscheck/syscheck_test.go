package syscheck

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreflight(t *testing.T) {
	t.Run("cool devices pass", func(t *testing.T) {
		stats := []DeviceStat{
			{Name: "NVIDIA H100 80GB HBM3", TempC: 34},
			{Name: "NVIDIA H100 80GB HBM3", TempC: 41},
		}
		assert.NoError(t, Preflight(stats, 70))
	})

	t.Run("hot device is rejected with its index", func(t *testing.T) {
		stats := []DeviceStat{
			{TempC: 35},
			{TempC: 88},
		}
		err := Preflight(stats, 70)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "device 1")
		assert.Contains(t, err.Error(), "88°C")
	})

	t.Run("ceiling is inclusive", func(t *testing.T) {
		assert.NoError(t, Preflight([]DeviceStat{{TempC: 70}}, 70))
		assert.Error(t, Preflight([]DeviceStat{{TempC: 71}}, 70))
	})

	t.Run("no devices passes", func(t *testing.T) {
		assert.NoError(t, Preflight(nil, 70))
	})
}

func TestValidateClocks(t *testing.T) {
	t.Run("full clocks pass", func(t *testing.T) {
		stats := []DeviceStat{{SMClockMHz: 1980, MaxSMClockMHz: 1980}}
		assert.NoError(t, ValidateClocks(stats, 0.5))
	})

	t.Run("derated clock is rejected", func(t *testing.T) {
		stats := []DeviceStat{{SMClockMHz: 600, MaxSMClockMHz: 1980}}
		err := ValidateClocks(stats, 0.5)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "600MHz")
	})

	t.Run("clock exactly at the floor passes", func(t *testing.T) {
		stats := []DeviceStat{{SMClockMHz: 990, MaxSMClockMHz: 1980}}
		assert.NoError(t, ValidateClocks(stats, 0.5))
	})

	t.Run("unreported maximum is skipped", func(t *testing.T) {
		stats := []DeviceStat{{SMClockMHz: 300, MaxSMClockMHz: 0}}
		assert.NoError(t, ValidateClocks(stats, 0.5))
	})
}

func TestDetectThreshold(t *testing.T) {
	cases := []struct {
		name string
		want time.Duration
	}{
		{"NVIDIA B200", 15 * time.Millisecond},
		{"NVIDIA GB200 NVL72", 15 * time.Millisecond},
		{"NVIDIA H100 80GB HBM3", 35 * time.Millisecond},
		{"NVIDIA H200 141GB HBM3e", 35 * time.Millisecond},
		{"NVIDIA A100-SXM4-80GB", 100 * time.Millisecond},
		{"nvidia h100 pcie", 35 * time.Millisecond},
		{"Tesla V100-SXM2-16GB", 500 * time.Millisecond},
		{"", 500 * time.Millisecond},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectThreshold(tc.name), tc.name)
	}
}
