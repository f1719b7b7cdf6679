// Package data holds the live price catalog. Reloads swap the whole catalog
// atomically so readers never see a partially loaded fee schedule.
package data

import (
	"sync/atomic"
	"time"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/metrics"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the catalog behind atomic values for lock-free reads.
type DataContainer struct {
	catalog         atomic.Pointer[catalog.Catalog]
	report          atomic.Pointer[interfaces.CatalogQualityReport]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a container with an empty catalog.
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.catalog.Store(catalog.Empty())
	dc.report.Store(&interfaces.CatalogQualityReport{})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetCatalog returns the live catalog, never nil.
func (dc *DataContainer) GetCatalog() *catalog.Catalog {
	if c := dc.catalog.Load(); c != nil {
		return c
	}
	logging.Warn("Catalog is not loaded, serving an empty one")
	return catalog.Empty()
}

// GetQualityReport returns the report produced with the live catalog.
func (dc *DataContainer) GetQualityReport() *interfaces.CatalogQualityReport {
	if r := dc.report.Load(); r != nil {
		return r
	}
	return &interfaces.CatalogQualityReport{}
}

// GetLastUpdated returns when the catalog was last swapped in, or the zero
// time if it never was.
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v, ok := dc.lastUpdated.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

// IsUpdating returns true while a reload is in progress.
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v, ok := dc.serverStartTime.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

// UpdateCatalog swaps in a freshly loaded catalog and its quality report.
func (dc *DataContainer) UpdateCatalog(c *catalog.Catalog, report *interfaces.CatalogQualityReport) {
	if c == nil {
		c = catalog.Empty()
	}
	if report == nil {
		report = &interfaces.CatalogQualityReport{Entries: c.Len()}
	}

	dc.catalog.Store(c)
	dc.report.Store(report)
	dc.lastUpdated.Store(time.Now())
	metrics.CatalogEntries.Set(float64(c.Len()))
}

// BeginUpdate marks the start of a reload. It returns false if another
// reload is already running.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload.
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
