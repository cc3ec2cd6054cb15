package pulse

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fxnlabs/gpu-pulse/internal/device"
)

func TestStatusValues(t *testing.T) {
	// Boundary contract: these numeric values are frozen.
	assert.Equal(t, Status(0), StatusOk)
	assert.Equal(t, Status(1), StatusRuntimeError)
	assert.Equal(t, Status(2), StatusOutOfMemory)
	assert.Equal(t, Status(3), StatusPeerUnsupported)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOk.String())
	assert.Equal(t, "runtime_error", StatusRuntimeError.String())
	assert.Equal(t, "out_of_memory", StatusOutOfMemory.String())
	assert.Equal(t, "peer_unsupported", StatusPeerUnsupported.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StatusOutOfMemory, classify(device.ErrOutOfMemory))
	assert.Equal(t, StatusOutOfMemory,
		classify(fmt.Errorf("device 0: malloc: %w", device.ErrOutOfMemory)))
	assert.Equal(t, StatusRuntimeError, classify(errors.New("kernel launch failed")))
}

func TestOutcomeOk(t *testing.T) {
	assert.True(t, okOutcome(1.5).Ok())
	assert.Equal(t, 1.5, okOutcome(1.5).Measurement)
	assert.False(t, Outcome{Status: StatusRuntimeError}.Ok())
	assert.False(t, failedOutcome(device.ErrOutOfMemory).Ok())
}
