// Package interfaces defines the contracts between the front-desk components
// so handlers, sessions and the scheduler can be tested against fakes.
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/ledger"
	"github.com/tabancura/frontdesk/ordersapi"
	"github.com/tabancura/frontdesk/render"
)

// CatalogQualityReport summarizes problems found in a loaded fee schedule.
type CatalogQualityReport struct {
	Entries              int      `json:"entries"`
	DuplicateCodes       []string `json:"duplicate_codes"`
	EntriesWithoutCode   int      `json:"entries_without_code"`
	EntriesWithoutLabel  int      `json:"entries_without_label"`
	EntriesWithoutPrices int      `json:"entries_without_prices"`
}

// DataStore holds the live catalog with atomic swaps on reload.
type DataStore interface {
	GetCatalog() *catalog.Catalog
	GetQualityReport() *CatalogQualityReport
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateCatalog(c *catalog.Catalog, report *CatalogQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// CatalogLoader reads a fee schedule from its source.
type CatalogLoader interface {
	Load() (*catalog.Catalog, error)
	Path() string
}

// OrdersClient is the remote quote/order service.
type OrdersClient interface {
	SearchByDocument(ctx context.Context, documentID string) ordersapi.PatientsResult
	SearchByFolio(ctx context.Context, folio string) ordersapi.PatientsResult
	OrderDetail(ctx context.Context, folio string) ordersapi.DetailResult
	AuditHistory(ctx context.Context) ordersapi.HistoryResult
	PushLedger(ctx context.Context, folio string, rows []entities.LedgerRow) error
	RecordOrder(ctx context.Context, entry entities.AuditEntry) error
}

// DocumentRenderer writes the printable documents.
type DocumentRenderer interface {
	Render(w io.Writer, kind render.Kind, p entities.PatientRecord, l ledger.Ledger) error
}

// Scheduler runs the periodic jobs.
type Scheduler interface {
	Start() error
	Stop()
}

// CatalogRefresher reloads the catalog on demand.
type CatalogRefresher interface {
	RefreshCatalog() error
}

// SessionCounter reports how many operator sessions are open.
type SessionCounter interface {
	Len() int
}

// HealthChecker reports service health for the /health endpoint.
type HealthChecker interface {
	HealthCheck() (status string, data map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator checks operator input and catalog quality.
type DataValidator interface {
	ValidateLookupKey(by, value string) (string, error)
	ValidateSearchQuery(q string) (string, error)
	ReportCatalogQuality(entries []entities.CatalogEntry) *CatalogQualityReport
}
