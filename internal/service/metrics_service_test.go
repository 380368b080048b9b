package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/leads", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/leads/import", http.StatusCreated, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordLeadsMoved("head_auto", 5)
	m.RecordClassification(models.StageTargeted)
	m.SetActiveCalls(2)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.01)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(5), snap.LeadsMoved)
	assert.Equal(t, uint64(1), snap.Classifications)
	assert.Equal(t, int64(2), snap.ActiveCalls)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.leadsMoved.WithLabelValues("head_auto")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.activeCalls))
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordAudit(models.ChallengePending)
	m.RecordExport(models.ExportStatusFinished)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `verification_transitions_total{status="pending"} 1`)
	assert.Contains(t, body, `forwarded_exports_total{status="FINISHED"} 1`)
	assert.Contains(t, body, "call_sessions_active")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordLeadsMoved("head", 1)
	m.SetActiveCalls(1)
	m.RecordExport(models.ExportStatusFailed)
	assert.Zero(t, m.Snapshot().RequestsTotal)
}
