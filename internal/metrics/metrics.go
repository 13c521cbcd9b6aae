package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coursewatch"

// Recorder holds the Prometheus collectors for the poll loop and the
// notification channels. A nil *Recorder is valid and records nothing.
type Recorder struct {
	cycles        *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	openSections  prometheus.Gauge
	alerts        prometheus.Counter
	deliveries    *prometheus.CounterVec
	deliveryDur   *prometheus.HistogramVec
	lastSuccessTS prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles run, by result",
		}, []string{"result"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Snapshot fetch failures, by kind",
		}, []string{"kind"}),
		openSections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sections",
			Help:      "Tracked sections observed open in the last successful cycle",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Notification events dispatched",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_deliveries_total",
			Help:      "Channel deliveries, by channel and result",
		}, []string{"channel", "result"}),
		deliveryDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_delivery_duration_seconds",
			Help:      "Time spent delivering one event on a channel",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"channel"}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that fetched the snapshot",
		}),
	}

	reg.MustRegister(
		r.cycles,
		r.fetchErrors,
		r.openSections,
		r.alerts,
		r.deliveries,
		r.deliveryDur,
		r.lastSuccessTS,
	)
	return r
}

// CycleSucceeded records a cycle that fetched and diffed the snapshot.
func (r *Recorder) CycleSucceeded(open int, at time.Time) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues("ok").Inc()
	r.openSections.Set(float64(open))
	r.lastSuccessTS.Set(float64(at.Unix()))
}

// CycleFailed records a cycle cut short by a fetch failure.
func (r *Recorder) CycleFailed(kind string) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	r.cycles.WithLabelValues("fetch_error").Inc()
	r.fetchErrors.WithLabelValues(kind).Inc()
}

// AlertDispatched records one notification event.
func (r *Recorder) AlertDispatched() {
	if r == nil {
		return
	}
	r.alerts.Inc()
}

// Delivery records the outcome of one channel delivery.
func (r *Recorder) Delivery(channel string, err error, took time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.deliveries.WithLabelValues(channel, result).Inc()
	r.deliveryDur.WithLabelValues(channel).Observe(took.Seconds())
}
