package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the pulse engine and CLI need. Workload shapes
// are configuration rather than baked-in constants so tests can substitute
// small workloads without changing the protocol (warm-up + timed pass).
type Config struct {
	Logger     LoggerConfig    `yaml:"logger"`
	Workload   WorkloadConfig  `yaml:"workload"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

type LoggerConfig struct {
	Verbosity string `yaml:"verbosity"`
}

type WorkloadConfig struct {
	// MatrixDim is the square GEMM dimension for the compute pulse.
	MatrixDim int `yaml:"matrixDim"`

	// TransferBytes is the size of the peer-to-peer transfer buffer.
	TransferBytes int64 `yaml:"transferBytes"`

	// ComputeRuns is the number of timed pulses per device in a sweep.
	// Single calls through the boundary always run exactly one.
	ComputeRuns int `yaml:"computeRuns"`
}

type ThresholdConfig struct {
	// MaxLatencyMs is the mean compute-pulse latency ceiling per device.
	// Zero means auto-calibrate from the detected device architecture.
	MaxLatencyMs int64 `yaml:"maxLatencyMs"`

	// MaxCV is the coefficient-of-variation ceiling across sweep runs on a
	// single device. High CV is the fail-slow signature.
	MaxCV float64 `yaml:"maxCV"`

	// MinPeerBandwidthGBs is the floor below which a supported peer link is
	// reported as degraded by the sweep.
	MinPeerBandwidthGBs float64 `yaml:"minPeerBandwidthGBs"`

	// MaxIdleTempC is the pre-flight idle temperature ceiling.
	MaxIdleTempC uint32 `yaml:"maxIdleTempC"`

	// MinClockFraction is the post-sweep SM clock floor as a fraction of
	// the device maximum.
	MinClockFraction float64 `yaml:"minClockFraction"`
}

type MetricsConfig struct {
	// ListenAddress serves Prometheus metrics during a sweep when non-empty.
	ListenAddress string `yaml:"listenAddress"`
}

// Default returns the documented defaults with environment overrides
// applied: a 2048×2048 single-precision GEMM, a 100 MiB transfer buffer and
// the operational thresholds the fleet driver has been calibrated against.
func Default() *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML config file, fills the gaps with defaults and applies
// environment overrides on top (operator overrides always win).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// MaxLatency returns the configured latency ceiling, or zero when the sweep
// should calibrate it from the detected device architecture.
func (c *Config) MaxLatency() time.Duration {
	return time.Duration(c.Thresholds.MaxLatencyMs) * time.Millisecond
}

// fillDefaults fills every zero-valued field with its documented default.
func (c *Config) fillDefaults() {
	if c.Logger.Verbosity == "" {
		c.Logger.Verbosity = "info"
	}
	if c.Workload.MatrixDim == 0 {
		c.Workload.MatrixDim = 2048
	}
	if c.Workload.TransferBytes == 0 {
		c.Workload.TransferBytes = 100 << 20
	}
	if c.Workload.ComputeRuns == 0 {
		c.Workload.ComputeRuns = 5
	}
	if c.Thresholds.MaxCV == 0 {
		c.Thresholds.MaxCV = 0.20
	}
	if c.Thresholds.MinPeerBandwidthGBs == 0 {
		c.Thresholds.MinPeerBandwidthGBs = 5.0
	}
	if c.Thresholds.MaxIdleTempC == 0 {
		c.Thresholds.MaxIdleTempC = 70
	}
	if c.Thresholds.MinClockFraction == 0 {
		c.Thresholds.MinClockFraction = 0.5
	}
}

// applyEnv applies the operator override variables. Names match what the
// fleet tooling already sets on GPU nodes.
func (c *Config) applyEnv() {
	c.Workload.MatrixDim = envInt("PULSE_MATRIX_DIM", c.Workload.MatrixDim)
	c.Workload.TransferBytes = envInt64("PULSE_TRANSFER_BYTES", c.Workload.TransferBytes)
	c.Workload.ComputeRuns = envInt("PULSE_RUNS", c.Workload.ComputeRuns)
	c.Thresholds.MaxLatencyMs = envMillis("PULSE_THRESHOLD_MS", c.Thresholds.MaxLatencyMs)
	c.Thresholds.MaxCV = envFloat64("PULSE_CV_MAX", c.Thresholds.MaxCV)
	c.Thresholds.MinPeerBandwidthGBs = envFloat64("P2P_MIN_GBS", c.Thresholds.MinPeerBandwidthGBs)
	if v := envInt("IDLE_TEMP_MAX", int(c.Thresholds.MaxIdleTempC)); v > 0 {
		c.Thresholds.MaxIdleTempC = uint32(v)
	}
}

func (c *Config) validate() error {
	if c.Workload.MatrixDim < 2 {
		return fmt.Errorf("workload.matrixDim must be at least 2, got %d", c.Workload.MatrixDim)
	}
	if c.Workload.TransferBytes < 4 {
		return fmt.Errorf("workload.transferBytes must be at least 4, got %d", c.Workload.TransferBytes)
	}
	if c.Workload.ComputeRuns < 1 {
		return fmt.Errorf("workload.computeRuns must be at least 1, got %d", c.Workload.ComputeRuns)
	}
	if c.Thresholds.MinClockFraction <= 0 || c.Thresholds.MinClockFraction > 1 {
		return fmt.Errorf("thresholds.minClockFraction must be in (0, 1], got %g", c.Thresholds.MinClockFraction)
	}
	return nil
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			return v
		}
	}
	return def
}

// envMillis accepts an explicit zero: the latency ceiling documents 0 as
// "auto-calibrate", so an operator must be able to set it over a file value.
func envMillis(key string, def int64) int64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v >= 0 {
			return v
		}
	}
	return def
}

func envFloat64(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			return v
		}
	}
	return def
}
