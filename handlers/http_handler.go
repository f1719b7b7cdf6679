package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/ordersapi"
	"github.com/tabancura/frontdesk/scheduler"
	"github.com/tabancura/frontdesk/session"
)

// HTTPHandlerImpl serves the front-desk HTTP API.
type HTTPHandlerImpl struct {
	dataStore interfaces.DataStore
	validator interfaces.DataValidator
	health    interfaces.HealthChecker
	refresher interfaces.CatalogRefresher
	sessions  *session.Store
	desk      *session.Desk
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.DataValidator,
	health interfaces.HealthChecker,
	refresher interfaces.CatalogRefresher,
	sessions *session.Store,
	desk *session.Desk,
) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{
		dataStore: dataStore,
		validator: validator,
		health:    health,
		refresher: refresher,
		sessions:  sessions,
		desk:      desk,
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	NextUpdate    string         `json:"next_update"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// HealthCheck returns service health with catalog and runtime statistics.
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.health.HealthCheck()

	var uptime time.Duration
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	response := HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		NextUpdate:    h.health.CalculateNextUpdate().Format(time.RFC3339),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}

	RespondWithJSON(w, httpStatus, response)
}

// CatalogSearchResponse lists catalog entries matching a query.
type CatalogSearchResponse struct {
	Query   string                  `json:"query"`
	Count   int                     `json:"count"`
	Results []entities.CatalogEntry `json:"results"`
}

// SearchCatalog finds fee schedule entries by display label, ignoring case
// and accents. An empty query lists the whole catalog.
func (h *HTTPHandlerImpl) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	q, err := h.validator.ValidateSearchQuery(r.URL.Query().Get("q"))
	if err != nil {
		logging.Warn("Unusual user input", "q", r.URL.Query().Get("q"), "error", err)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := h.dataStore.GetCatalog().Search(q)
	if results == nil {
		results = []entities.CatalogEntry{}
	}

	RespondWithJSON(w, http.StatusOK, CatalogSearchResponse{
		Query:   q,
		Count:   len(results),
		Results: results,
	})
}

// ReloadCatalog reloads the fee schedule file now.
func (h *HTTPHandlerImpl) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.RefreshCatalog(); err != nil {
		if errors.Is(err, scheduler.ErrUpdateInProgress) {
			RespondWithError(w, http.StatusConflict, "Catalog reload already in progress")
			return
		}
		logging.Error("Manual catalog reload failed", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Catalog reload failed, previous catalog kept")
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"entries":     h.dataStore.GetCatalog().Len(),
		"last_update": h.dataStore.GetLastUpdated().Format(time.RFC3339),
		"quality":     h.dataStore.GetQualityReport(),
	})
}

// AuditHistory lists past order generations recorded by the order service.
func (h *HTTPHandlerImpl) AuditHistory(w http.ResponseWriter, r *http.Request) {
	res := h.desk.History(r.Context())
	switch res.Status {
	case ordersapi.StatusConnectionError:
		logging.Warn("Audit history unavailable", "error", res.Err)
		RespondWithError(w, http.StatusBadGateway, "Error de conexión.")
	case ordersapi.StatusNotFound:
		RespondWithJSON(w, http.StatusOK, []entities.AuditEntry{})
	default:
		entries := res.Entries
		if entries == nil {
			entries = []entities.AuditEntry{}
		}
		RespondWithJSON(w, http.StatusOK, entries)
	}
}
