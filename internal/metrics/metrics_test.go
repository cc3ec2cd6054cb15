package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcomes(t *testing.T) {
	before := testutil.ToFloat64(Outcomes.WithLabelValues("compute", "ok"))
	Outcomes.WithLabelValues("compute", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Outcomes.WithLabelValues("compute", "ok")))
}

func TestSweepUnhealthy(t *testing.T) {
	before := testutil.ToFloat64(SweepUnhealthy.WithLabelValues("high_variance"))
	SweepUnhealthy.WithLabelValues("high_variance").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SweepUnhealthy.WithLabelValues("high_variance")))
}

func TestGauges(t *testing.T) {
	PulseThroughput.WithLabelValues("0").Set(42.5)
	assert.Equal(t, 42.5, testutil.ToFloat64(PulseThroughput.WithLabelValues("0")))

	PulseCV.WithLabelValues("0").Set(0.03)
	assert.Equal(t, 0.03, testutil.ToFloat64(PulseCV.WithLabelValues("0")))

	PeerBandwidth.WithLabelValues("0", "1").Set(18.7)
	assert.Equal(t, 18.7, testutil.ToFloat64(PeerBandwidth.WithLabelValues("0", "1")))
}

func TestHistogramObserve(t *testing.T) {
	// Collector registration happens at package init; observing must not
	// panic on any label value.
	assert.NotPanics(t, func() {
		PulseDuration.WithLabelValues("0").Observe(0.012)
		PulseDuration.WithLabelValues("7").Observe(130.0)
	})
}
