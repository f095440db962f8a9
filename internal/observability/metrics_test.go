package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordRequestsAndSweeps(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/api/v1/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/v1/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordError("/api/v1/tickets", "POST", "VALIDATION_FAILED")
	m.RecordSweep("ok", 3)
	m.RecordSweep("error", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/v1/tickets", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/v1/tickets", "POST", "VALIDATION_FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.breaches))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordSweep("ok", 1)
		_ = m.Handler()
	})
}
