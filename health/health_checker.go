// Package health reports whether the front desk can serve operators.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/tabancura/frontdesk/interfaces"
)

// staleFactor is how many refresh intervals may pass without a successful
// catalog load before the service reports degraded.
const staleFactor = 3

var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore    interfaces.DataStore
	sessions     interfaces.SessionCounter
	refreshEvery time.Duration
	now          func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(dataStore interfaces.DataStore, sessions interfaces.SessionCounter, refreshEvery time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore:    dataStore,
		sessions:     sessions,
		refreshEvery: refreshEvery,
		now:          time.Now,
	}
}

// HealthCheck returns the status for the /health endpoint. An empty or stale
// catalog degrades the service but never takes it down: sessions, lookups and
// manual rows keep working.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	entries := h.dataStore.GetCatalog().Len()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	var catalogAge time.Duration
	if !lastUpdate.IsZero() {
		catalogAge = h.now().Sub(lastUpdate)
	}

	switch {
	case entries == 0:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case h.refreshEvery > 0 && catalogAge > staleFactor*h.refreshEvery:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"catalog_entries":     entries,
		"catalog_age_minutes": math.Round(catalogAge.Minutes()*10) / 10,
		"is_updating":         isUpdating,
		"catalog_quality":     h.dataStore.GetQualityReport(),
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
	}
	if h.sessions != nil {
		data["active_sessions"] = h.sessions.Len()
	}
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = math.Round(h.now().Sub(start).Seconds())
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns when the next scheduled catalog reload is due.
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := h.now()
	last := h.dataStore.GetLastUpdated()
	if last.IsZero() || h.refreshEvery <= 0 {
		return now.Add(h.refreshEvery)
	}

	next := last.Add(h.refreshEvery)
	for !next.After(now) {
		next = next.Add(h.refreshEvery)
	}
	return next
}
