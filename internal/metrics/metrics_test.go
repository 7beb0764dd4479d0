package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithSubsystem("player"))

	m.FrameSent("KEYBOARD")
	m.FrameSent("KEYBOARD")
	m.FrameReceived("EVENT")
	m.FrameDropped(ReasonUnknownKind)
	m.RoutingMiss("event")
	m.HandlerPanic("payload")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesSent.WithLabelValues("KEYBOARD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("EVENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(ReasonUnknownKind)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routingMisses.WithLabelValues("event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerPanics.WithLabelValues("payload")))

	n, err := testutil.GatherAndCount(reg, "gamecontroller_player_frames_sent_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameSent("MOUSE")
		m.FrameReceived("MOUSE")
		m.FrameDropped(ReasonMalformed)
		m.RoutingMiss("payload")
		m.HandlerPanic("event")
	})
}
