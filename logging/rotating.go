package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	filePrefix = "frontdesk-"
	fileSuffix = ".log"
	// DefaultMaxFileSize is used when no size limit is configured.
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
	cleanupInterval          = 24 * time.Hour
)

var partPattern = regexp.MustCompile(`^frontdesk-\d{4}-W\d{2}\.(\d+)\.log$`)

// RotatingLogger writes to one file per ISO week and opens a numbered part
// once the current file reaches maxFileSize. Files older than the retention
// window are removed by a daily sweep.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize atomic.Int64
	now         func() time.Time

	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger without starting the cleanup loop.
func NewRotatingLogger(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}
}

// weekKey returns the ISO week in YYYY-Www format.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// open selects the file for week, reusing the newest part while it has room.
// Caller must hold mu.
func (rl *RotatingLogger) open(week string, full bool) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		rl.currentFile = nil
	}

	name := rl.pickFile(week, full)
	path := filepath.Join(rl.logDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	rl.currentFile = file
	rl.currentWeek = week
	rl.currentSize.Store(size)
	return nil
}

func (rl *RotatingLogger) pickFile(week string, full bool) string {
	base := filePrefix + week + fileSuffix
	highest, highestSize := rl.highestPart(week)

	if highest == 0 {
		info, err := os.Stat(filepath.Join(rl.logDir, base))
		if err != nil || (!full && info.Size() < rl.maxFileSize) {
			return base
		}
		return partName(week, 1)
	}

	if !full && highestSize < rl.maxFileSize {
		return partName(week, highest)
	}
	return partName(week, highest+1)
}

func (rl *RotatingLogger) highestPart(week string) (int, int64) {
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+week+".*"+fileSuffix))

	highest := 0
	var size int64
	for _, match := range matches {
		m := partPattern.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= highest {
			continue
		}
		highest = n
		size = 0
		if info, err := os.Stat(match); err == nil {
			size = info.Size()
		}
	}
	return highest, size
}

func partName(week string, n int) string {
	return fmt.Sprintf("%s%s.%02d%s", filePrefix, week, n, fileSuffix)
}

// Write implements io.Writer, rotating on week change or size limit.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(rl.now())
	switch {
	case rl.currentFile == nil || rl.currentWeek != week:
		if err := rl.open(week, false); err != nil {
			return 0, err
		}
	case rl.currentSize.Load()+int64(len(p)) > rl.maxFileSize && rl.currentSize.Load() > 0:
		if err := rl.open(week, true); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs removes log files last modified before the retention window.
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := rl.now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		rl.mu.Lock()
		isCurrent := rl.currentFile != nil && filepath.Base(rl.currentFile.Name()) == name
		rl.mu.Unlock()
		if isCurrent {
			continue
		}

		if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// startCleanup runs cleanupOldLogs every interval until Close.
func (rl *RotatingLogger) startCleanup(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel
	rl.cleanupDone = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(rl.cleanupDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Console only; logging through slog here would re-enter Write.
				if n, err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if n > 0 {
					fmt.Fprintf(os.Stdout, "Cleaned up %d old log files\n", n)
				}
			}
		}
	}()
}

// Close stops the cleanup loop and closes the current file.
func (rl *RotatingLogger) Close() error {
	if rl.cancel != nil {
		rl.cancel()
		select {
		case <-rl.cleanupDone:
		case <-time.After(5 * time.Second):
			fmt.Fprintln(os.Stderr, "log cleanup goroutine did not stop in time")
		}
		rl.cancel = nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}
