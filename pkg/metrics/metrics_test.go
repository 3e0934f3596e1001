package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.RecordPage("requests")
	c.RecordPage("requests")
	c.RecordRecords("requests", 250)
	c.RecordRecords("requests", 3)
	c.RecordViolations("destinations", SeverityWarning, 2)
	c.RecordViolations("destinations", SeverityError, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.PagesFetched("requests")))
	assert.Equal(t, 253.0, testutil.ToFloat64(c.RecordsEmitted("requests")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Violations("destinations", SeverityWarning)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Violations("destinations", SeverityError)))
}

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RecordRecords("sources", 5)

	assert.Equal(t, 5.0, testutil.ToFloat64(a.RecordsEmitted("sources")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RecordsEmitted("sources")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest("connections", 200, 120*time.Millisecond)
	c.ObserveRequest("connections", 0, time.Second)
	c.RecordStreamDuration("connections", 2*time.Second)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tap_hookdeck_http_request_duration_seconds_count{status="200",stream="connections"} 1`))
	assert.True(t, strings.Contains(body, `tap_hookdeck_http_request_duration_seconds_count{status="error",stream="connections"} 1`))
	assert.True(t, strings.Contains(body, `tap_hookdeck_stream_sync_duration_seconds{stream="connections"} 2`))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), 5*time.Millisecond)
}

func TestStartTime(t *testing.T) {
	before := time.Now()
	c := NewCollector()
	after := time.Now()

	assert.False(t, c.StartTime().Before(before))
	assert.False(t, c.StartTime().After(after))
}
