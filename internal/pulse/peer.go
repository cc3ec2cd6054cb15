package pulse

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/internal/device"
	"github.com/fxnlabs/gpu-pulse/internal/metrics"
)

// RunPeerCheck measures unidirectional device-to-device bandwidth from src
// to dst and returns it in GB/s. The peer-capability query runs first: an
// unsupported pair returns PeerUnsupported with nothing allocated. A
// supported link that measures slow still returns Ok with the low number;
// thresholding "degraded" against a floor is the caller's decision, because
// the right floor depends on the link generation the caller expects.
//
// Peer-access enablement and both transfer buffers are scoped to this call
// and released on every exit path, so repeated probes never accumulate
// link-enablement state.
func (e *Engine) RunPeerCheck(srcDevice, dstDevice int32) Outcome {
	src, dst := int(srcDevice), int(dstDevice)
	size := e.cfg.Workload.TransferBytes
	log := e.log.With(
		zap.Int32("src", srcDevice),
		zap.Int32("dst", dstDevice),
		zap.Int64("transfer_bytes", size))

	outcome := e.runPeer(src, dst, size, log)
	metrics.Outcomes.WithLabelValues("peer", outcome.Status.String()).Inc()
	return outcome
}

func (e *Engine) runPeer(src, dst int, size int64, log *zap.Logger) Outcome {
	supported, err := e.rt.CanAccessPeer(src, dst)
	if err != nil {
		log.Warn("peer capability query failed", zap.Error(err))
		return failedOutcome(err)
	}
	if !supported {
		log.Info("peer access unsupported for device pair")
		return Outcome{Status: StatusPeerUnsupported}
	}

	if err := e.rt.EnablePeerAccess(src, dst); err != nil {
		log.Warn("enabling peer access failed", zap.Error(err))
		return failedOutcome(err)
	}
	defer func() {
		if err := e.rt.DisablePeerAccess(src, dst); err != nil {
			log.Error("revoking peer access failed", zap.Error(err))
		}
	}()

	srcBuf, err := e.rt.Malloc(src, size)
	if err != nil {
		log.Warn("source buffer allocation failed", zap.Error(err))
		return failedOutcome(err)
	}
	defer e.free(srcBuf, log)

	dstBuf, err := e.rt.Malloc(dst, size)
	if err != nil {
		log.Warn("destination buffer allocation failed", zap.Error(err))
		return failedOutcome(err)
	}
	defer e.free(dstBuf, log)

	// Warm-up transfer, untimed. Amortizes link bring-up and page-table
	// population so the measured copy sees steady-state bandwidth.
	if err := e.copyPass(dstBuf, dst, srcBuf, src, size); err != nil {
		log.Warn("warm-up transfer failed", zap.Error(err))
		return failedOutcome(err)
	}

	start := time.Now()
	if err := e.copyPass(dstBuf, dst, srcBuf, src, size); err != nil {
		log.Warn("timed transfer failed", zap.Error(err))
		return failedOutcome(err)
	}
	elapsed := time.Since(start)
	if elapsed <= 0 {
		log.Error("timer reported non-positive duration", zap.Duration("elapsed", elapsed))
		return Outcome{Status: StatusRuntimeError}
	}

	bandwidthGBs := float64(size) / elapsed.Seconds() / 1e9
	metrics.PeerBandwidth.WithLabelValues(strconv.Itoa(src), strconv.Itoa(dst)).Set(bandwidthGBs)

	log.Info("peer check completed",
		zap.Duration("elapsed", elapsed),
		zap.Float64("bandwidth_gbs", bandwidthGBs))
	return okOutcome(bandwidthGBs)
}

// copyPass enqueues one full peer copy and blocks until both ends drain it.
func (e *Engine) copyPass(dst device.Buffer, dstDev int, src device.Buffer, srcDev int, size int64) error {
	if err := e.rt.CopyPeer(dst, dstDev, src, srcDev, size); err != nil {
		return err
	}
	if err := e.rt.Synchronize(srcDev); err != nil {
		return err
	}
	return e.rt.Synchronize(dstDev)
}

func (e *Engine) free(b device.Buffer, log *zap.Logger) {
	if err := b.Free(); err != nil {
		log.Error("buffer release failed", zap.Error(err))
	}
}
