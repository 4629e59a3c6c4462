package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes of a call.
const (
	OutcomeResult      = "result"
	OutcomeError       = "error"
	OutcomeClosed      = "closed"
	OutcomeWriteFailed = "write_failed"
	OutcomeRejected    = "rejected"
)

// Reasons an inbound frame is dropped.
const (
	DropParse     = "parse"
	DropInvalid   = "invalid"
	DropUnknownID = "unknown_id"
)

// ClientMetrics groups the collectors of one RPC client. All methods are
// safe on a nil receiver.
type ClientMetrics struct {
	CallsTotal         *prometheus.CounterVec
	CallOutcomesTotal  *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	DroppedFramesTotal *prometheus.CounterVec
	PendingCalls       prometheus.Gauge
}

func NewClientMetrics() *ClientMetrics {
	return &ClientMetrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsrpc_calls_total",
				Help: "Total number of JSON-RPC calls issued",
			},
			[]string{"method"},
		),
		CallOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsrpc_call_outcomes_total",
				Help: "Total number of settled JSON-RPC calls by outcome",
			},
			[]string{"method", "outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsrpc_notifications_total",
				Help: "Total number of notifications received",
			},
			[]string{"method"},
		),
		DroppedFramesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsrpc_dropped_frames_total",
				Help: "Total number of inbound frames dropped",
			},
			[]string{"reason"},
		),
		PendingCalls: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wsrpc_pending_calls",
				Help: "Number of calls awaiting a response",
			},
		),
	}
}

// Register registers all client metrics with the given registry
func (m *ClientMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.CallsTotal,
		m.CallOutcomesTotal,
		m.NotificationsTotal,
		m.DroppedFramesTotal,
		m.PendingCalls,
	)
}

func (m *ClientMetrics) CallIssued(method string) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(method).Inc()
}

func (m *ClientMetrics) CallSettled(method, outcome string) {
	if m == nil {
		return
	}
	m.CallOutcomesTotal.WithLabelValues(method, outcome).Inc()
}

func (m *ClientMetrics) NotificationReceived(method string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(method).Inc()
}

func (m *ClientMetrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.DroppedFramesTotal.WithLabelValues(reason).Inc()
}

func (m *ClientMetrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingCalls.Set(float64(n))
}
