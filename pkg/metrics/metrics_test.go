package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/binder/pkg/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetricsWith(reg)

	m.ObserveOperation("put", 10*time.Millisecond, nil)
	m.ObserveOperation("put", 10*time.Millisecond, errors.New("boom"))
	m.RecordBytes("put", 42)
	m.RecordQuotaRejection()
	m.RecordInconsistency("orphaned_blob")
	m.SetUsage(100, 1000)

	sm := m.(*storageMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("put", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("put", "error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(sm.bytesWritten.WithLabelValues("put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.quotaRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.inconsistencies.WithLabelValues("orphaned_blob")))
	assert.Equal(t, 100.0, testutil.ToFloat64(sm.usedBytes))
	assert.Equal(t, 1000.0, testutil.ToFloat64(sm.limitBytes))
}

func TestS3Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewS3MetricsWith(reg)

	m.ObserveOperation("get", time.Millisecond, nil)
	m.RecordBytes("read", 7)

	n, err := testutil.GatherAndCount(reg, "binder_s3_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.(*s3Metrics).bytesTransferred.WithLabelValues("read")))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWith(reg)

	m.ObserveRequest("post", "put", 201, time.Millisecond, 10, 20)
	m.RecordRateLimited()

	hm := m.(*httpMetrics)
	labels := prometheus.Labels{"method": "post", "operation": "put", "status": "201"}
	assert.Equal(t, 10.0, testutil.ToFloat64(hm.requestBytes.With(labels)))
	assert.Equal(t, 20.0, testutil.ToFloat64(hm.responseBytes.With(labels)))
	assert.Equal(t, 1.0, testutil.ToFloat64(hm.rateLimited))
}

func TestReconcileMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconcileMetricsWith(reg)

	start := time.Now()
	m.ObserveRun(&reconcile.Stats{StartTime: start, EndTime: start.Add(time.Second), Stale: 2, Orphaned: 3, Deferred: 5, Repaired: 4, Failed: 1}, nil)
	m.ObserveRun(nil, errors.New("index down"))

	rm := m.(*reconcileMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.runsTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rm.findings.WithLabelValues("orphaned")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rm.findings.WithLabelValues("repaired")))
	assert.Equal(t, 5.0, testutil.ToFloat64(rm.findings.WithLabelValues("deferred")))
}

func TestConstructorsDisabledByDefault(t *testing.T) {
	if IsEnabled() {
		t.Skip("global registry already initialised")
	}
	assert.Nil(t, NewStorageMetrics())
	assert.Nil(t, NewS3Metrics())
	assert.Nil(t, NewHTTPMetrics())
	assert.Nil(t, NewReconcileMetrics())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerIndex(t *testing.T) {
	s := NewServer(ServerConfig{})
	assert.Equal(t, 9090, s.Port())

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), ":9090/metrics"))

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
