package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"caseflow/apperr"
)

// Metrics counts workflow outcomes. A nil Registerer leaves them unregistered.
type Metrics struct {
	performTotal    *prometheus.CounterVec
	performDuration prometheus.Histogram
	reopenTotal     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		performTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_perform_inspection_total",
			Help: "Perform-inspection calls by outcome",
		}, []string{"outcome"}),
		performDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseflow_perform_inspection_duration_seconds",
			Help:    "Perform-inspection latency",
			Buckets: prometheus.DefBuckets,
		}),
		reopenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_case_reopen_total",
			Help: "Case reopen calls by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observePerform(start time.Time, err error) {
	m.performTotal.WithLabelValues(outcome(err)).Inc()
	m.performDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeReopen(err error) {
	m.reopenTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest:
		return "invalid_request"
	case apperr.KindDBConflict:
		return "conflict"
	case apperr.KindDBMissingEntity:
		return "missing_entity"
	default:
		return "internal"
	}
}
