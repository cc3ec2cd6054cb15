package pulse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-pulse/internal/device"
)

func TestRunComputePulse(t *testing.T) {
	t.Run("healthy device", func(t *testing.T) {
		eng, rt := testEngine(t, device.SimConfig{Devices: 1})

		out := eng.RunComputePulse(0)
		require.Equal(t, StatusOk, out.Status)
		assert.Greater(t, out.Measurement, 0.0, "Ok must carry a positive throughput")
		assert.Equal(t, int64(0), rt.AllocatedBytes(0), "buffers must not outlive the call")
	})

	t.Run("warm-up precedes the timed pass", func(t *testing.T) {
		rt := device.NewSimRuntime(device.SimConfig{Devices: 1}, zap.NewNop())
		counting := &countingRuntime{Runtime: rt}
		eng := NewEngine(counting, testConfig(), zap.NewNop())

		out := eng.RunComputePulse(0)
		require.True(t, out.Ok())
		assert.Equal(t, 2, counting.gemms, "exactly one warm-up plus one timed pass")
	})

	t.Run("throughput is stable across calls", func(t *testing.T) {
		eng, _ := testEngine(t, device.SimConfig{Devices: 1})

		first := eng.RunComputePulse(0)
		require.True(t, first.Ok())
		for i := 0; i < 3; i++ {
			out := eng.RunComputePulse(0)
			require.True(t, out.Ok())
			assert.InEpsilon(t, first.Measurement, out.Measurement, 10.0,
				"repeated pulses on the same device should be the same order of magnitude")
		}
	})

	t.Run("allocation failure", func(t *testing.T) {
		// Room for two matrices but not three: the third Malloc fails and
		// the first two must be released before the call returns.
		size := int64(32 * 32 * 4)
		eng, rt := testEngine(t, device.SimConfig{Devices: 1, MemoryBytes: 2 * size})

		out := eng.RunComputePulse(0)
		assert.Equal(t, StatusOutOfMemory, out.Status)
		assert.Zero(t, out.Measurement)
		assert.Equal(t, int64(0), rt.AllocatedBytes(0), "partial allocations must be released")

		// The failure is not sticky: freeing restored capacity for exactly
		// two matrices, so the next call fails the same way, not worse.
		again := eng.RunComputePulse(0)
		assert.Equal(t, StatusOutOfMemory, again.Status)
		assert.Equal(t, int64(0), rt.AllocatedBytes(0))
	})

	t.Run("kernel failure", func(t *testing.T) {
		eng, rt := testEngine(t, device.SimConfig{Devices: 1})
		rt.GemmErr = errors.New("kernel launch failed")

		out := eng.RunComputePulse(0)
		assert.Equal(t, StatusRuntimeError, out.Status)
		assert.Zero(t, out.Measurement)
		assert.Equal(t, int64(0), rt.AllocatedBytes(0))
	})

	t.Run("synchronize failure", func(t *testing.T) {
		eng, rt := testEngine(t, device.SimConfig{Devices: 1})
		rt.SyncErr = errors.New("device lost")

		out := eng.RunComputePulse(0)
		assert.Equal(t, StatusRuntimeError, out.Status)
		assert.Equal(t, int64(0), rt.AllocatedBytes(0))
	})

	t.Run("no leak across repeated calls", func(t *testing.T) {
		eng, rt := testEngine(t, device.SimConfig{Devices: 1})
		for i := 0; i < 10; i++ {
			out := eng.RunComputePulse(0)
			require.True(t, out.Ok())
			require.Equal(t, int64(0), rt.AllocatedBytes(0))
		}
	})
}
