package data

import (
	"sync"
	"testing"
	"time"

	"github.com/tabancura/frontdesk/catalog"
	"github.com/tabancura/frontdesk/entities"
	"github.com/tabancura/frontdesk/interfaces"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]entities.CatalogEntry{
		entities.NewCatalogEntry("A1", "HEMOGRAMA", 10000, 2000, 15000, 12000),
		entities.NewCatalogEntry("B2", "PERFIL LIPIDICO", 0, 0, 20000, 5000),
	})
}

func TestNewDataContainer(t *testing.T) {
	dc := NewDataContainer()

	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}
	if dc.GetCatalog() == nil || dc.GetCatalog().Len() != 0 {
		t.Error("NewDataContainer should serve an empty catalog")
	}
	if dc.GetQualityReport() == nil {
		t.Error("NewDataContainer should have a report")
	}
}

func TestUpdateCatalog(t *testing.T) {
	dc := NewDataContainer()
	before := time.Now()

	report := &interfaces.CatalogQualityReport{Entries: 2, EntriesWithoutPrices: 0}
	dc.UpdateCatalog(testCatalog(), report)

	if got := dc.GetCatalog().Len(); got != 2 {
		t.Errorf("Expected 2 entries, got %d", got)
	}
	if _, ok := dc.GetCatalog().Lookup("A1"); !ok {
		t.Error("Expected A1 to be served after update")
	}
	if dc.GetQualityReport() != report {
		t.Error("Expected the report to be swapped with the catalog")
	}
	if dc.GetLastUpdated().Before(before) {
		t.Error("Expected lastUpdated to move forward")
	}
}

func TestUpdateCatalogNilInputs(t *testing.T) {
	dc := NewDataContainer()
	dc.UpdateCatalog(nil, nil)

	if dc.GetCatalog() == nil || dc.GetCatalog().Len() != 0 {
		t.Error("Expected nil catalog to become empty")
	}
	if dc.GetQualityReport().Entries != 0 {
		t.Errorf("Unexpected report %+v", dc.GetQualityReport())
	}
}

func TestBeginEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("Expected first BeginUpdate to succeed")
	}
	if dc.BeginUpdate() {
		t.Error("Expected concurrent BeginUpdate to be refused")
	}
	if !dc.IsUpdating() {
		t.Error("Expected IsUpdating during update")
	}
	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("Expected IsUpdating false after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("Expected BeginUpdate to succeed again")
	}
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	start := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	dc.SetServerStartTime(start)
	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, dc.GetServerStartTime())
	}
}

func TestConcurrentReadsDuringUpdates(t *testing.T) {
	dc := NewDataContainer()
	c := testCatalog()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				dc.UpdateCatalog(c, nil)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if n := dc.GetCatalog().Len(); n != 0 && n != 2 {
					t.Errorf("Observed partial catalog with %d entries", n)
					return
				}
			}
		}()
	}
	wg.Wait()
}
