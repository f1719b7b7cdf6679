// Package scheduler runs the periodic jobs of the front-desk service: catalog
// refresh from the fee-schedule file, idle-session expiry and a staleness
// watch on the live catalog.
package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/tabancura/frontdesk/interfaces"
	"github.com/tabancura/frontdesk/logging"
	"github.com/tabancura/frontdesk/metrics"
	"github.com/tabancura/frontdesk/validation"
)

// Compile-time checks
var (
	_ interfaces.Scheduler        = (*Scheduler)(nil)
	_ interfaces.CatalogRefresher = (*Scheduler)(nil)
)

// ErrUpdateInProgress is returned by RefreshCatalog when another reload runs.
var ErrUpdateInProgress = errors.New("catalog update already in progress")

// SweepInterval is how often idle sessions are expired.
const SweepInterval = time.Minute

// SessionSweeper drops sessions idle since before now.
type SessionSweeper interface {
	Sweep(now time.Time) int
}

// Scheduler reloads the catalog on an interval and expires idle sessions.
type Scheduler struct {
	dataStore    interfaces.DataStore
	loader       interfaces.CatalogLoader
	validator    interfaces.DataValidator
	sessions     SessionSweeper
	refreshEvery time.Duration
	scheduler    *gocron.Scheduler

	mu          sync.Mutex
	refreshJob  *gocron.Job
	staleWarned bool
}

// NewScheduler creates a scheduler. sessions may be nil.
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.CatalogLoader, sessions SessionSweeper, refreshEvery time.Duration) *Scheduler {
	return &Scheduler{
		dataStore:    dataStore,
		loader:       loader,
		validator:    validation.NewDataValidator(),
		sessions:     sessions,
		refreshEvery: refreshEvery,
		scheduler:    gocron.NewScheduler(time.Local),
	}
}

// Start performs the initial catalog load and schedules the jobs. A failed
// initial load is logged and the service starts with an empty catalog.
func (s *Scheduler) Start() error {
	if err := s.RefreshCatalog(); err != nil {
		logging.Error("Initial catalog load failed, serving an empty catalog", "path", s.loader.Path(), "error", err)
	}

	job, err := s.scheduler.Every(s.refreshEvery).WaitForSchedule().SingletonMode().Do(func() {
		if err := s.RefreshCatalog(); err != nil {
			logging.Warn("Scheduled catalog refresh failed, keeping previous catalog", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule catalog refresh: %w", err)
	}
	s.mu.Lock()
	s.refreshJob = job
	s.mu.Unlock()

	if s.sessions != nil {
		if _, err := s.scheduler.Every(SweepInterval).WaitForSchedule().Do(s.sweepSessions); err != nil {
			return fmt.Errorf("failed to schedule session sweep: %w", err)
		}
	}

	if _, err := s.scheduler.Every(s.refreshEvery).WaitForSchedule().Do(s.checkStaleness); err != nil {
		return fmt.Errorf("failed to schedule staleness check: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started", "catalog_refresh", s.refreshEvery.String(), "session_sweep", SweepInterval.String())
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// NextRefresh returns when the next scheduled reload runs, or the zero time
// before Start.
func (s *Scheduler) NextRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshJob == nil {
		return time.Time{}
	}
	return s.refreshJob.NextRun()
}

// RefreshCatalog reloads the catalog file and swaps it in. On failure the
// previous catalog stays live.
func (s *Scheduler) RefreshCatalog() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Catalog update already in progress, skipping")
		return ErrUpdateInProgress
	}
	defer s.dataStore.EndUpdate()

	start := time.Now()
	c, err := s.loader.Load()
	if err != nil {
		metrics.CatalogReloadsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to load catalog from %s: %w", s.loader.Path(), err)
	}

	report := s.validator.ReportCatalogQuality(c.Entries())
	if report.EntriesWithoutCode > 0 {
		logging.Warn("Catalog rows without code", "count", report.EntriesWithoutCode)
	}
	if report.EntriesWithoutPrices > 0 {
		logging.Info("Catalog entries with every amount at zero", "count", report.EntriesWithoutPrices)
	}

	s.dataStore.UpdateCatalog(c, report)
	metrics.CatalogReloadsTotal.WithLabelValues("success").Inc()

	s.mu.Lock()
	s.staleWarned = false
	s.mu.Unlock()

	logging.Info("Catalog loaded",
		"path", s.loader.Path(),
		"entries", c.Len(),
		"duration", time.Since(start).String(),
	)
	return nil
}

func (s *Scheduler) sweepSessions() {
	if n := s.sessions.Sweep(time.Now()); n > 0 {
		logging.Info("Expired idle sessions", "count", n)
	}
}

// checkStaleness warns once when the catalog has not been reloaded for three
// refresh intervals.
func (s *Scheduler) checkStaleness() {
	last := s.dataStore.GetLastUpdated()
	if last.IsZero() || time.Since(last) <= 3*s.refreshEvery {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleWarned {
		return
	}
	s.staleWarned = true
	logging.Warn("Catalog has not been refreshed", "last_update", last.Format(time.RFC3339))
}
