package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg, err := Load("../../fixtures/tests/config/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "debug", cfg.Logger.Verbosity)
		assert.Equal(t, 256, cfg.Workload.MatrixDim)
		assert.Equal(t, int64(1048576), cfg.Workload.TransferBytes)
		assert.Equal(t, 3, cfg.Workload.ComputeRuns)
		assert.Equal(t, int64(250), cfg.Thresholds.MaxLatencyMs)
		assert.Equal(t, 250*time.Millisecond, cfg.MaxLatency())
		assert.Equal(t, 0.15, cfg.Thresholds.MaxCV)
		assert.Equal(t, 2.5, cfg.Thresholds.MinPeerBandwidthGBs)
		assert.Equal(t, uint32(65), cfg.Thresholds.MaxIdleTempC)
		assert.Equal(t, 0.6, cfg.Thresholds.MinClockFraction)
		assert.Equal(t, ":9090", cfg.Metrics.ListenAddress)
	})

	t.Run("partial config gets defaults", func(t *testing.T) {
		cfg, err := Load("../../fixtures/tests/config/partial_config.yaml")
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.Logger.Verbosity)
		assert.Equal(t, 2048, cfg.Workload.MatrixDim)
		assert.Equal(t, int64(100<<20), cfg.Workload.TransferBytes)
		assert.Equal(t, 5, cfg.Workload.ComputeRuns)
		assert.Equal(t, 0.20, cfg.Thresholds.MaxCV)
		assert.Equal(t, 5.0, cfg.Thresholds.MinPeerBandwidthGBs)
	})

	t.Run("non-existent file", func(t *testing.T) {
		_, err := Load("non-existent-file.yaml")
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load("../../fixtures/tests/invalid_config/config.yaml")
		assert.Error(t, err)
	})

	t.Run("out-of-range values", func(t *testing.T) {
		_, err := Load("../../fixtures/tests/config/bad_values.yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "matrixDim")
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Logger.Verbosity)
	assert.Equal(t, 2048, cfg.Workload.MatrixDim)
	assert.Equal(t, int64(100<<20), cfg.Workload.TransferBytes)
	assert.Equal(t, 5, cfg.Workload.ComputeRuns)
	assert.Equal(t, int64(0), cfg.Thresholds.MaxLatencyMs)
	assert.Equal(t, time.Duration(0), cfg.MaxLatency())
	assert.Equal(t, uint32(70), cfg.Thresholds.MaxIdleTempC)
	assert.Equal(t, 0.5, cfg.Thresholds.MinClockFraction)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_MATRIX_DIM", "512")
	t.Setenv("PULSE_TRANSFER_BYTES", "2097152")
	t.Setenv("PULSE_RUNS", "2")
	t.Setenv("PULSE_THRESHOLD_MS", "40")
	t.Setenv("PULSE_CV_MAX", "0.10")
	t.Setenv("P2P_MIN_GBS", "8.5")
	t.Setenv("IDLE_TEMP_MAX", "60")

	cfg := Default()
	assert.Equal(t, 512, cfg.Workload.MatrixDim)
	assert.Equal(t, int64(2097152), cfg.Workload.TransferBytes)
	assert.Equal(t, 2, cfg.Workload.ComputeRuns)
	assert.Equal(t, 40*time.Millisecond, cfg.MaxLatency())
	assert.Equal(t, 0.10, cfg.Thresholds.MaxCV)
	assert.Equal(t, 8.5, cfg.Thresholds.MinPeerBandwidthGBs)
	assert.Equal(t, uint32(60), cfg.Thresholds.MaxIdleTempC)

	t.Run("env wins over file", func(t *testing.T) {
		cfg, err := Load("../../fixtures/tests/config/valid_config.yaml")
		require.NoError(t, err)
		assert.Equal(t, 512, cfg.Workload.MatrixDim)
		assert.Equal(t, 8.5, cfg.Thresholds.MinPeerBandwidthGBs)
	})

	t.Run("malformed value is ignored", func(t *testing.T) {
		t.Setenv("PULSE_MATRIX_DIM", "not-a-number")
		cfg := Default()
		assert.Equal(t, 2048, cfg.Workload.MatrixDim)
	})

	t.Run("explicit zero threshold re-enables auto-calibration", func(t *testing.T) {
		t.Setenv("PULSE_THRESHOLD_MS", "0")
		cfg, err := Load("../../fixtures/tests/config/valid_config.yaml")
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.MaxLatency())
	})

	t.Run("negative threshold is ignored", func(t *testing.T) {
		t.Setenv("PULSE_THRESHOLD_MS", "-5")
		cfg, err := Load("../../fixtures/tests/config/valid_config.yaml")
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, cfg.MaxLatency())
	})
}
