package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// archiveDir is created next to the log file and receives rotated logs
const archiveDir = "old"

// RotatingWriter is an append-only log file that moves itself into old/
// once it grows past maxSize. A background loop re-opens the file when it is
// moved or deleted from outside the process.
type RotatingWriter struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	maxSize int64
	size    int64
	now     func() time.Time

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRotatingWriter opens path for appending. An existing file that is
// already over maxSize is archived immediately.
func NewRotatingWriter(path string, maxSize int64, verifyInterval time.Duration) (*RotatingWriter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("invalid max log size %d", maxSize)
	}
	if verifyInterval <= 0 {
		verifyInterval = DefaultVerifyInterval
	}

	w := &RotatingWriter{
		path:    path,
		maxSize: maxSize,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	if err := w.open(); err != nil {
		return nil, err
	}
	if w.size >= w.maxSize {
		if err := w.rotate(); err != nil {
			w.f.Close()
			return nil, err
		}
	}

	w.wg.Add(1)
	go w.verifyLoop(verifyInterval)

	return w, nil
}

// Write implements io.Writer
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

// Close stops the verifier and closes the file. It is safe to call twice.
func (w *RotatingWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.f != nil {
			err = w.f.Close()
			w.f = nil
		}
	})
	return err
}

func (w *RotatingWriter) verifyLoop(interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			if err := w.verify(); err != nil {
				fmt.Fprintf(os.Stderr, "log file verification failed: %v\n", err)
			}
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// open must be called with mu held
func (w *RotatingWriter) open() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.f = f
	w.size = fi.Size()
	return nil
}

// archivePath returns old/<basename>.YYYYMMDD-HHMMSS, suffixed with a counter
// when several rotations happen within the same second
func (w *RotatingWriter) archivePath() string {
	base := filepath.Join(filepath.Dir(w.path), archiveDir, filepath.Base(w.path)+"."+w.now().Format("20060102-150405"))
	candidate := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", base, i)
	}
}

// rotate must be called with mu held
func (w *RotatingWriter) rotate() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	if err := os.MkdirAll(filepath.Join(filepath.Dir(w.path), archiveDir), 0755); err != nil {
		return fmt.Errorf("creating %s/ directory: %w", archiveDir, err)
	}
	// The file may already be gone if it was moved externally
	_ = os.Rename(w.path, w.archivePath())

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("creating new log file: %w", err)
	}
	w.f = f
	w.size = 0
	return nil
}

// verify re-opens the log when the open descriptor no longer backs w.path,
// and resyncs the size counter. Must be called with mu held.
func (w *RotatingWriter) verify() error {
	if w.f == nil {
		return w.open()
	}

	pathInfo, pathErr := os.Lstat(w.path)
	openInfo, openErr := w.f.Stat()
	if pathErr != nil || openErr != nil || !os.SameFile(openInfo, pathInfo) {
		_ = w.f.Close()
		w.f = nil
		return w.open()
	}

	w.size = openInfo.Size()
	return nil
}
