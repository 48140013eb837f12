package gaze

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/gaze/metric"
)

// serviceMetrics holds Prometheus metrics for the gaze service.
type serviceMetrics struct {
	scansTotal   *prometheus.CounterVec // by component and outcome (match/clean/error)
	scanDuration *prometheus.HistogramVec

	refocusTotal *prometheus.CounterVec // by component and outcome (applied/rejected)
	statusTotal  *prometheus.CounterVec

	errors  *prometheus.CounterVec // by component and error_type
	dropped *prometheus.CounterVec // mailbox overflow

	patternCount prometheus.Gauge
}

// newServiceMetrics creates and registers the service metrics. A nil
// registry disables metrics entirely.
func newServiceMetrics(registry *metric.MetricsRegistry) (*serviceMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &serviceMetrics{
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "scans_total",
			Help:      "Total number of scan offers processed",
		}, []string{"component", "outcome"}), // outcome: match, clean, error

		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "scan_duration_seconds",
			Help:      "Scan execution duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"component"}),

		refocusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "refocus_total",
			Help:      "Total number of pattern refocus requests",
		}, []string{"component", "outcome"}), // outcome: applied, rejected

		statusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "status_checks_total",
			Help:      "Total number of status probes answered",
		}, []string{"component"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "errors_total",
			Help:      "Total number of message handling errors",
		}, []string{"component", "error_type"}), // error_type: decode, scan, refocus, publish, panic

		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "dropped_total",
			Help:      "Total number of inbound messages dropped on mailbox overflow",
		}, []string{"component"}),

		patternCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gaze",
			Subsystem: "service",
			Name:      "active_patterns",
			Help:      "Number of patterns in the active set",
		}),
	}

	if err := registry.RegisterCounterVec("gaze_service", "scans_total", m.scansTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("gaze_service", "scan_duration", m.scanDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gaze_service", "refocus_total", m.refocusTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gaze_service", "status_total", m.statusTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gaze_service", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("gaze_service", "dropped", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("gaze_service", "active_patterns", m.patternCount); err != nil {
		return nil, err
	}

	return m, nil
}

// recordScan records one scan outcome with its duration.
func (m *serviceMetrics) recordScan(component string, matched bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "clean"
	if matched {
		outcome = "match"
	}
	m.scansTotal.WithLabelValues(component, outcome).Inc()
	m.scanDuration.WithLabelValues(component).Observe(duration.Seconds())
}

// recordRefocus records one refocus outcome.
func (m *serviceMetrics) recordRefocus(component string, applied bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if applied {
		outcome = "applied"
	}
	m.refocusTotal.WithLabelValues(component, outcome).Inc()
}

// recordStatus records one answered status probe.
func (m *serviceMetrics) recordStatus(component string) {
	if m == nil {
		return
	}
	m.statusTotal.WithLabelValues(component).Inc()
}

// recordError records a message handling error.
func (m *serviceMetrics) recordError(component, errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(component, errorType).Inc()
}

// recordDrop records a mailbox overflow drop.
func (m *serviceMetrics) recordDrop(component string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(component).Inc()
}

// setPatternCount updates the active pattern gauge.
func (m *serviceMetrics) setPatternCount(n int) {
	if m == nil {
		return
	}
	m.patternCount.Set(float64(n))
}
