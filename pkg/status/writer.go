// Package status maintains plain-text status files that let external
// monitoring see when the service started, whether it is alive, and why it
// last stopped.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

const humanTimeFormat = "Mon Jan 02 15:04:05 2006"

// MetricsProvider defines the interface for collecting runtime metrics
type MetricsProvider interface {
	ActiveRequests() int32
	StartTime() time.Time
	// FaceLogins returns the number of accepted and rejected face logins
	FaceLogins() (accepted, rejected uint64)
}

// Writer manages status files for daemon health monitoring
type Writer struct {
	fs              afero.Fs
	dir             string
	updateInterval  time.Duration
	pid             int
	version         string
	metricsProvider MetricsProvider

	stopCh       chan struct{}
	wg           sync.WaitGroup
	stopOnce     sync.Once
	shutdownOnce sync.Once
	started      bool
}

// New creates a status Writer on the local filesystem
func New(dir string, updateInterval time.Duration, version string) (*Writer, error) {
	return NewFs(afero.NewOsFs(), dir, updateInterval, version)
}

// NewFs creates a status Writer on fs
func NewFs(fs afero.Fs, dir string, updateInterval time.Duration, version string) (*Writer, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}

	return &Writer{
		fs:             fs,
		dir:            dir,
		updateInterval: updateInterval,
		pid:            os.Getpid(),
		version:        version,
		stopCh:         make(chan struct{}),
	}, nil
}

// SetMetricsProvider sets the provider for runtime metrics
func (w *Writer) SetMetricsProvider(provider MetricsProvider) {
	w.metricsProvider = provider
}

// WriteStartFile writes the last_start file with startup information
func (w *Writer) WriteStartFile() error {
	now := time.Now()
	content := fmt.Sprintf(`timestamp_unix: %d
timestamp_human: %s
pid: %d
version: %s
`,
		now.Unix(),
		now.Format(humanTimeFormat),
		w.pid,
		w.version,
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "last_start"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write last_start: %w", err)
	}

	logging.App.Info("Wrote status file", "file", "last_start")
	return nil
}

// WriteStopFile writes the last_stop file with shutdown information
func (w *Writer) WriteStopFile(reason string, uptime time.Duration) error {
	now := time.Now()
	content := fmt.Sprintf(`timestamp_unix: %d
timestamp_human: %s
reason: %s
uptime_seconds: %d
`,
		now.Unix(),
		now.Format(humanTimeFormat),
		reason,
		int64(uptime.Seconds()),
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "last_stop"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write last_stop: %w", err)
	}

	logging.App.Info("Wrote status file", "file", "last_stop", "reason", reason)
	return nil
}

// StartHeartbeat starts a goroutine that periodically updates the running file
func (w *Writer) StartHeartbeat() {
	w.started = true
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.updateInterval)
		defer ticker.Stop()

		if err := w.writeRunningFile(); err != nil {
			logging.App.Error("Failed to write running file", "error", err)
		}

		for {
			select {
			case <-ticker.C:
				if err := w.writeRunningFile(); err != nil {
					logging.App.Error("Failed to write running file", "error", err)
				}
			case <-w.stopCh:
				return
			}
		}
	}()

	logging.App.Info("Started status heartbeat", "interval", w.updateInterval)
}

// Stop stops the heartbeat goroutine. Safe to call more than once.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.started {
			logging.App.Info("Stopped status heartbeat")
		}
	})
}

// Shutdown stops the heartbeat and records reason in last_stop. Only the
// first call writes the file.
func (w *Writer) Shutdown(reason string) error {
	var err error
	w.shutdownOnce.Do(func() {
		w.Stop()
		err = w.WriteStopFile(reason, w.uptime(time.Now()))
	})
	return err
}

func (w *Writer) uptime(now time.Time) time.Duration {
	if w.metricsProvider == nil {
		return 0
	}
	start := w.metricsProvider.StartTime()
	if start.IsZero() {
		return 0
	}
	return now.Sub(start)
}

// writeRunningFile writes the current runtime status to the running file
func (w *Writer) writeRunningFile() error {
	now := time.Now()

	var (
		activeRequests     int32
		accepted, rejected uint64
	)
	if w.metricsProvider != nil {
		activeRequests = w.metricsProvider.ActiveRequests()
		accepted, rejected = w.metricsProvider.FaceLogins()
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	content := fmt.Sprintf(`timestamp_unix: %d
uptime_seconds: %d
active_requests: %d
face_logins_accepted: %d
face_logins_rejected: %d
memory_alloc_mb: %d
memory_sys_mb: %d
goroutines: %d
gc_cpu_fraction: %.6f
`,
		now.Unix(),
		int64(w.uptime(now).Seconds()),
		activeRequests,
		accepted,
		rejected,
		memStats.Alloc/1024/1024,
		memStats.Sys/1024/1024,
		runtime.NumGoroutine(),
		memStats.GCCPUFraction,
	)

	if err := w.atomicWrite(filepath.Join(w.dir, "running"), []byte(content)); err != nil {
		return fmt.Errorf("failed to write running: %w", err)
	}

	logging.App.Debug("Updated running file", "active_requests", activeRequests, "goroutines", runtime.NumGoroutine())
	return nil
}

// atomicWrite writes content to a temp file and renames it over path so
// readers never see partial writes
func (w *Writer) atomicWrite(path string, content []byte) error {
	tmpPath := path + ".tmp"

	if err := afero.WriteFile(w.fs, tmpPath, content, 0644); err != nil {
		return err
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		_ = w.fs.Remove(tmpPath)
		return err
	}

	return nil
}
