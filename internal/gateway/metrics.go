package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts gateway traffic by message kind.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	uploaded prometheus.Counter
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailtask",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway messages handled, by kind and status.",
		}, []string{"kind", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mailtask",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling gateway messages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		uploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailtask",
			Subsystem: "gateway",
			Name:      "uploaded_bytes_total",
			Help:      "Attachment bytes forwarded to the tracker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.uploaded)
	}
	return m
}

func (m *Metrics) observe(kind Kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind), status).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(seconds)
}

func (m *Metrics) addUploaded(n int) {
	if m == nil {
		return
	}
	m.uploaded.Add(float64(n))
}
