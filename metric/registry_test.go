package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	r := NewMetricsRegistry()
	require.NotNil(t, r)
	require.NotNil(t, r.CoreMetrics())
	require.NotNil(t, r.PrometheusRegistry())
}

func TestRegisterAndUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gaze",
		Subsystem: "test",
		Name:      "ops_total",
		Help:      "test counter",
	})

	require.NoError(t, r.RegisterCounter("gaze-service", "ops_total", counter))

	// Duplicate service-scoped key is rejected
	err := r.RegisterCounter("gaze-service", "ops_total", counter)
	assert.Error(t, err)

	assert.True(t, r.Unregister("gaze-service", "ops_total"))
	assert.False(t, r.Unregister("gaze-service", "ops_total"))
}

func TestRegisterVecs(t *testing.T) {
	r := NewMetricsRegistry()

	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gaze", Subsystem: "test", Name: "vec_total", Help: "h",
	}, []string{"label"})
	require.NoError(t, r.RegisterCounterVec("svc", "vec_total", cv))

	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gaze", Subsystem: "test", Name: "gauge_vec", Help: "h",
	}, []string{"label"})
	require.NoError(t, r.RegisterGaugeVec("svc", "gauge_vec", gv))

	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gaze", Subsystem: "test", Name: "hist_vec", Help: "h",
	}, []string{"label"})
	require.NoError(t, r.RegisterHistogramVec("svc", "hist_vec", hv))
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewMetricsRegistry()
	r.CoreMetrics().NATSConnected.Set(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "gaze_nats_connected 1")
}
