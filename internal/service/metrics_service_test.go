package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/inspections", 200, 20*time.Millisecond)
	m.ObserveHTTPRequest("GET", "/inspections", 200, 40*time.Millisecond)
	m.ObserveTransition("inspection", "", "assigned")
	m.ObserveTransition("inspection", "assigned", "submitted")
	m.ObserveNotification("new_assignment", nil)
	m.ObserveNotification("new_assignment", errors.New("redis down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(2), snap.TransitionsTotal)
	assert.Equal(t, uint64(1), snap.NotificationsDelivered)
	assert.Equal(t, uint64(1), snap.NotificationsFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `workflow_transitions_total{entity="inspection",from="assigned",to="submitted"} 1`))
	assert.True(t, strings.Contains(body, `workflow_transitions_total{entity="inspection",from="none",to="assigned"} 1`))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveTransition("inspection", "a", "b")
	m.ObserveNotification("x", nil)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
