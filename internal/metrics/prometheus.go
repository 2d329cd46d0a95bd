package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkin"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	scanDuration      prometheus.Histogram
	profilesDue       prometheus.Counter
	scansSkipped      *prometheus.CounterVec
	checkInsCreated   prometheus.Counter
	checkInDuplicates prometheus.Counter
	checkInsCompleted prometheus.Counter
	timersHandled     *prometheus.CounterVec
	timerQueueDepth   prometheus.Gauge
	timerLag          prometheus.Histogram
	notifications     *prometheus.CounterVec
	responses         *prometheus.CounterVec
}

// NewPrometheus creates a recorder with its own registry, including the
// Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &PrometheusRecorder{
		registry: reg,
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time spent scanning profiles and starting check-ins per tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		profilesDue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_due_total",
			Help:      "Profiles found due by the scanner.",
		}),
		scansSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_skipped_total",
			Help:      "Scan ticks that did not run to completion.",
		}, []string{"reason"}),
		checkInsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Check-ins created.",
		}),
		checkInDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_total",
			Help:      "Check-in inserts rejected as duplicates for the same user and minute.",
		}),
		checkInsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completed_total",
			Help:      "Check-ins completed by an affirmative reply.",
		}),
		timersHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timers_handled_total",
			Help:      "Reminder and escalation timer firings by outcome.",
		}, []string{"kind", "outcome"}),
		timerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timer_queue_depth",
			Help:      "Timers waiting in the durable queue.",
		}),
		timerLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timer_lag_seconds",
			Help:      "Delay between a timer's due time and its dispatch.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and status.",
		}, []string{"kind", "status"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Inbound replies received.",
		}, []string{"affirmative"}),
	}

	reg.MustRegister(
		p.scanDuration,
		p.profilesDue,
		p.scansSkipped,
		p.checkInsCreated,
		p.checkInDuplicates,
		p.checkInsCompleted,
		p.timersHandled,
		p.timerQueueDepth,
		p.timerLag,
		p.notifications,
		p.responses,
	)

	return p
}

// Handler serves the registry in Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveScanDuration(duration time.Duration) {
	p.scanDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) AddProfilesDue(n int) {
	if n > 0 {
		p.profilesDue.Add(float64(n))
	}
}

func (p *PrometheusRecorder) IncScanSkipped(reason string) {
	p.scansSkipped.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) IncCheckInCreated() { p.checkInsCreated.Inc() }

func (p *PrometheusRecorder) IncCheckInDuplicate() { p.checkInDuplicates.Inc() }

func (p *PrometheusRecorder) IncCheckInCompleted() { p.checkInsCompleted.Inc() }

func (p *PrometheusRecorder) IncTimerHandled(kind, outcome string) {
	p.timersHandled.WithLabelValues(kind, outcome).Inc()
}

func (p *PrometheusRecorder) SetTimerQueueDepth(depth int64) {
	p.timerQueueDepth.Set(float64(depth))
}

func (p *PrometheusRecorder) ObserveTimerLag(lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	p.timerLag.Observe(lag.Seconds())
}

func (p *PrometheusRecorder) IncNotification(kind, status string) {
	p.notifications.WithLabelValues(kind, status).Inc()
}

func (p *PrometheusRecorder) IncResponseReceived(affirmative bool) {
	p.responses.WithLabelValues(strconv.FormatBool(affirmative)).Inc()
}
