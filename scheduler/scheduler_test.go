package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/data"
	"github.com/tabancura/frontdesk/entities"
)

type mockLoader struct {
	loads   atomic.Int32
	fail    atomic.Bool
	entries []entities.CatalogEntry
}

func (m *mockLoader) Load() (*catalog.Catalog, error) {
	m.loads.Add(1)
	if m.fail.Load() {
		return catalog.Empty(), errors.New("file is locked")
	}
	return catalog.New(m.entries), nil
}

func (m *mockLoader) Path() string { return "aranceles.xlsx" }

type mockSweeper struct {
	calls atomic.Int32
}

func (m *mockSweeper) Sweep(now time.Time) int {
	m.calls.Add(1)
	return 2
}

func newLoader() *mockLoader {
	return &mockLoader{entries: []entities.CatalogEntry{
		entities.NewCatalogEntry("A1", "HEMOGRAMA", 10000, 0, 0, 0),
		entities.NewCatalogEntry("A1", "HEMOGRAMA DUP", 9000, 0, 0, 0),
		entities.NewCatalogEntry("B2", "PERFIL LIPIDICO", 0, 0, 0, 0),
	}}
}

func TestStartLoadsCatalog(t *testing.T) {
	store := data.NewDataContainer()
	loader := newLoader()
	s := NewScheduler(store, loader, &mockSweeper{}, time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	if loader.loads.Load() != 1 {
		t.Errorf("Expected one initial load, got %d", loader.loads.Load())
	}
	if store.GetCatalog().Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", store.GetCatalog().Len())
	}
	if e, _ := store.GetCatalog().Lookup("A1"); e.Label != "HEMOGRAMA" {
		t.Errorf("Expected first A1 to win lookups, got %q", e.Label)
	}

	report := store.GetQualityReport()
	if report.Entries != 3 || len(report.DuplicateCodes) != 1 || report.EntriesWithoutPrices != 1 {
		t.Errorf("Unexpected quality report %+v", report)
	}
}

func TestStartWithUnreadableCatalog(t *testing.T) {
	store := data.NewDataContainer()
	loader := newLoader()
	loader.fail.Store(true)
	s := NewScheduler(store, loader, nil, time.Hour)

	if err := s.Start(); err != nil {
		t.Fatalf("Expected Start to tolerate a bad catalog, got %v", err)
	}
	defer s.Stop()

	if store.GetCatalog().Len() != 0 {
		t.Error("Expected an empty catalog")
	}
	if !store.GetLastUpdated().IsZero() {
		t.Error("Expected no successful update to be recorded")
	}
}

func TestRefreshFailureKeepsPreviousCatalog(t *testing.T) {
	store := data.NewDataContainer()
	loader := newLoader()
	s := NewScheduler(store, loader, nil, time.Hour)

	if err := s.RefreshCatalog(); err != nil {
		t.Fatal(err)
	}
	loader.fail.Store(true)
	if err := s.RefreshCatalog(); err == nil {
		t.Fatal("Expected refresh error")
	}

	if _, ok := store.GetCatalog().Lookup("A1"); !ok {
		t.Error("Expected previous catalog to stay live")
	}
	if store.IsUpdating() {
		t.Error("Expected update flag to be cleared after failure")
	}
}

func TestRefreshRefusedWhileUpdating(t *testing.T) {
	store := data.NewDataContainer()
	loader := newLoader()
	s := NewScheduler(store, loader, nil, time.Hour)

	if !store.BeginUpdate() {
		t.Fatal("Expected to acquire the update flag")
	}
	defer store.EndUpdate()

	if err := s.RefreshCatalog(); !errors.Is(err, ErrUpdateInProgress) {
		t.Errorf("Expected ErrUpdateInProgress, got %v", err)
	}
	if loader.loads.Load() != 0 {
		t.Error("Expected no load while another update runs")
	}
}

func TestSweepSessions(t *testing.T) {
	sweeper := &mockSweeper{}
	s := NewScheduler(data.NewDataContainer(), newLoader(), sweeper, time.Hour)

	s.sweepSessions()
	if sweeper.calls.Load() != 1 {
		t.Errorf("Expected one sweep, got %d", sweeper.calls.Load())
	}
}

func TestCheckStalenessWarnsOnce(t *testing.T) {
	store := data.NewDataContainer()
	s := NewScheduler(store, newLoader(), nil, time.Millisecond)

	s.checkStaleness()
	if s.staleWarned {
		t.Error("Expected no warning before any load")
	}

	if err := s.RefreshCatalog(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	s.checkStaleness()
	if !s.staleWarned {
		t.Error("Expected a staleness warning")
	}

	if err := s.RefreshCatalog(); err != nil {
		t.Fatal(err)
	}
	if s.staleWarned {
		t.Error("Expected a successful refresh to reset the warning")
	}
}

func TestNextRefreshBeforeStart(t *testing.T) {
	s := NewScheduler(data.NewDataContainer(), newLoader(), nil, time.Hour)
	if !s.NextRefresh().IsZero() {
		t.Error("Expected zero next refresh before Start")
	}
}
