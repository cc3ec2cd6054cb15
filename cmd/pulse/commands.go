package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/fixtures"
	"github.com/fxnlabs/gpu-pulse/internal/device"
	"github.com/fxnlabs/gpu-pulse/internal/metrics"
	"github.com/fxnlabs/gpu-pulse/internal/pulse"
	"github.com/fxnlabs/gpu-pulse/internal/syscheck"
)

func newEngine() *pulse.Engine {
	return pulse.NewEngine(device.NewRuntime(rootLogger), cfg, rootLogger)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List visible accelerators",
		Action: func(c *cli.Context) error {
			eng := newEngine()
			count := eng.DeviceCount()
			if count < 0 {
				return cli.Exit("device runtime failed to initialize", 1)
			}

			out := map[string]interface{}{
				"runtime":     eng.Runtime().Name(),
				"deviceCount": count,
			}
			if stats, err := syscheck.Snapshot(); err == nil {
				names := make([]string, len(stats))
				for i, s := range stats {
					names[i] = s.Name
				}
				out["names"] = names
			}
			return printJSON(out)
		},
	}
}

func computeCommand() *cli.Command {
	var deviceIndex int
	return &cli.Command{
		Name:  "compute",
		Usage: "Run the warm-up/measure GEMM pulse on one device",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "device",
				Value:       0,
				Usage:       "0-based device index",
				Destination: &deviceIndex,
			},
		},
		Action: func(c *cli.Context) error {
			eng := newEngine()
			if err := checkIndex(eng, deviceIndex); err != nil {
				return err
			}

			out := eng.RunComputePulse(int32(deviceIndex))
			result := map[string]interface{}{
				"device": deviceIndex,
				"status": out.Status.String(),
			}
			if out.Ok() {
				result["tflops"] = out.Measurement
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !out.Ok() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func peerCommand() *cli.Command {
	var src, dst int
	return &cli.Command{
		Name:  "peer",
		Usage: "Measure peer-to-peer bandwidth between a device pair",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "src", Value: 0, Usage: "source device index", Destination: &src},
			&cli.IntFlag{Name: "dst", Value: 1, Usage: "destination device index", Destination: &dst},
		},
		Action: func(c *cli.Context) error {
			eng := newEngine()
			if err := checkIndex(eng, src); err != nil {
				return err
			}
			if err := checkIndex(eng, dst); err != nil {
				return err
			}
			if src == dst {
				return fmt.Errorf("src and dst are both device %d, nothing to probe", src)
			}

			out := eng.RunPeerCheck(int32(src), int32(dst))
			result := map[string]interface{}{
				"src":    src,
				"dst":    dst,
				"status": out.Status.String(),
			}
			if out.Ok() {
				result["bandwidthGBs"] = out.Measurement
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !out.Ok() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func sweepCommand() *cli.Command {
	var interval time.Duration
	var quiet bool
	return &cli.Command{
		Name:  "sweep",
		Usage: "Run the full node health check: every device, then the P2P ring",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "interval",
				Usage:       "re-run the sweep on this interval (0 = one-shot)",
				Destination: &interval,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Usage:       "suppress the banner",
				Destination: &quiet,
			},
		},
		Action: func(c *cli.Context) error {
			if !quiet {
				figure.NewFigure("GPU Pulse", "", true).Print()
				fmt.Println("")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if addr := cfg.Metrics.ListenAddress; addr != "" {
				go serveMetrics(ctx, addr)
			}

			for {
				healthy, err := runSweep()
				if err != nil {
					return err
				}
				if interval == 0 {
					if !healthy {
						return cli.Exit("", 1)
					}
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
}

// runSweep executes one full sweep: preflight, per-device pulses, the P2P
// ring and the post-sweep clock validation. Returns whether the node is
// healthy.
func runSweep() (bool, error) {
	log := rootLogger.Named("sweep")

	stats, statsErr := syscheck.Snapshot()
	if statsErr != nil {
		// NVML absent or GPUs not yet visible to the driver. The pulse is
		// the authoritative signal, so proceed without the side checks.
		log.Warn("driver state unavailable, skipping preflight and clock checks", zap.Error(statsErr))
	}

	if statsErr == nil {
		if err := syscheck.Preflight(stats, cfg.Thresholds.MaxIdleTempC); err != nil {
			log.Error("preflight failed, quarantining without pulse", zap.Error(err))
			metrics.SweepUnhealthy.WithLabelValues("preflight_failed").Inc()
			return false, printJSON(map[string]interface{}{"healthy": false, "failure": err.Error()})
		}
	}

	maxLatency := cfg.MaxLatency()
	if maxLatency == 0 && statsErr == nil && len(stats) > 0 {
		maxLatency = syscheck.DetectThreshold(stats[0].Name)
		log.Info("latency ceiling calibrated from device architecture",
			zap.String("device", stats[0].Name),
			zap.Duration("ceiling", maxLatency))
	}

	report := newEngine().Sweep(maxLatency)

	if report.Healthy && statsErr == nil {
		post, err := syscheck.Snapshot()
		if err == nil {
			if err := syscheck.ValidateClocks(post, cfg.Thresholds.MinClockFraction); err != nil {
				log.Error("clock validation failed", zap.Error(err))
				metrics.SweepUnhealthy.WithLabelValues("clock_validation_failed").Inc()
				report.Healthy = false
			}
		}
	}

	return report.Healthy, printJSON(report)
}

// serveMetrics exposes the Prometheus collectors until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) {
	log := rootLogger.Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("metrics server shutdown error", zap.Error(err))
		}
	}()

	log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", zap.Error(err))
	}
}

func configCommand() *cli.Command {
	var path string
	return &cli.Command{
		Name:  "config",
		Usage: "Config helpers",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a commented config template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "path",
						Value:       "config.yaml",
						Usage:       "where to write the template",
						Destination: &path,
					},
				},
				Action: func(c *cli.Context) error {
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("%s already exists, refusing to overwrite", path)
					}
					if err := os.WriteFile(path, fixtures.ConfigTemplate, 0o644); err != nil {
						return err
					}
					rootLogger.Info("config template written", zap.String("path", path))
					return nil
				},
			},
		},
	}
}

// checkIndex enforces the caller contract 0 <= index < DeviceCount before
// handing the index to the engine.
func checkIndex(eng *pulse.Engine, index int) error {
	count := eng.DeviceCount()
	if count < 0 {
		return cli.Exit("device runtime failed to initialize", 1)
	}
	if index < 0 || int32(index) >= count {
		return fmt.Errorf("device index %d out of range [0, %d)", index, count)
	}
	return nil
}
