package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// AccessLogger records authentication attempts and API requests
type AccessLogger interface {
	// LogAuth logs an authentication operation such as "password" or "face"
	LogAuth(operation string, user string, status string, details ...interface{})
	// LogRequest logs a completed HTTP request
	LogRequest(method string, path string, status int, details ...interface{})
	// Close releases the underlying file, if any
	Close() error
}

type accessLogger struct {
	logger *log.Logger
	closer io.Closer
}

// NewAccessLogger creates a new access logger appending to logPath. An empty
// path discards all entries.
func NewAccessLogger(logPath string) (AccessLogger, error) {
	if logPath == "" {
		return NewWriterAccessLogger(io.Discard), nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("creating access log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening access log file: %w", err)
	}

	return &accessLogger{
		logger: log.New(f, "", 0),
		closer: f,
	}, nil
}

// NewWriterAccessLogger creates an access logger writing to w
func NewWriterAccessLogger(w io.Writer) AccessLogger {
	return &accessLogger{logger: log.New(w, "", 0)}
}

func (l *accessLogger) LogAuth(operation string, user string, status string, details ...interface{}) {
	parts := []string{"op=" + formatValue(operation)}
	if user != "" {
		parts = append(parts, "user="+formatValue(user))
	}
	parts = append(parts, "status="+formatValue(status))
	parts = append(parts, formatPairs(details)...)

	l.logger.Printf("%s %s", timestamp(), strings.Join(parts, " "))
}

func (l *accessLogger) LogRequest(method string, path string, status int, details ...interface{}) {
	parts := []string{
		"method=" + formatValue(method),
		"path=" + formatValue(path),
		fmt.Sprintf("status=%d", status),
	}
	parts = append(parts, formatPairs(details)...)

	l.logger.Printf("%s %s", timestamp(), strings.Join(parts, " "))
}

func (l *accessLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
