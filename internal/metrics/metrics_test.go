package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetricsCount(t *testing.T) {
	m := NewClientMetrics()
	reg := prometheus.NewRegistry()
	m.Register(reg)

	m.CallIssued("ping")
	m.CallIssued("ping")
	m.CallSettled("ping", OutcomeResult)
	m.NotificationReceived("tick")
	m.FrameDropped(DropParse)
	m.SetPending(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallsTotal.WithLabelValues("ping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallOutcomesTotal.WithLabelValues("ping", OutcomeResult)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("tick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedFramesTotal.WithLabelValues(DropParse)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingCalls))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNilClientMetricsIsNoop(t *testing.T) {
	var m *ClientMetrics
	assert.NotPanics(t, func() {
		m.CallIssued("ping")
		m.CallSettled("ping", OutcomeClosed)
		m.NotificationReceived("tick")
		m.FrameDropped(DropInvalid)
		m.SetPending(1)
	})
}
