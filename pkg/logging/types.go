package logging

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// LogLevelDebug is for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is for error messages
	LogLevelError LogLevel = "error"
	// LogLevelPanic is for panic messages
	LogLevelPanic LogLevel = "panic"
)

const (
	// DefaultMaxSize is the app log size that triggers rotation
	DefaultMaxSize = 10 * 1024 * 1024
	// DefaultVerifyInterval is how often the app log file identity is checked
	DefaultVerifyInterval = time.Minute
)

// Config holds logging configuration
type Config struct {
	AccessLogPath  string        // Auth audit log, discarded if empty
	AppLogPath     string        // Application log, stdout if empty
	Level          LogLevel      // Minimum app log level, info if empty
	MaxSize        int64         // Rotation size for the app log
	VerifyInterval time.Duration // File identity check interval for the app log
}

var (
	// App is the global application logger
	App *AppLogger
	// Access is the global authentication audit logger
	Access AccessLogger
)

func init() {
	var err error

	App, err = NewAppLogger("", LogLevelInfo, DefaultMaxSize, DefaultVerifyInterval)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default app logger: %v", err))
	}

	Access, err = NewAccessLogger("")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default access logger: %v", err))
	}
}

// ParseLevel converts a config string into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case "":
		return LogLevelInfo, nil
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelPanic:
		return level, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Initialize replaces the global loggers according to config
func Initialize(config Config) error {
	if config.Level == "" {
		config.Level = LogLevelInfo
	}
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}
	if config.VerifyInterval <= 0 {
		config.VerifyInterval = DefaultVerifyInterval
	}

	newAccess, err := NewAccessLogger(config.AccessLogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize access logger: %w", err)
	}

	newApp, err := NewAppLogger(config.AppLogPath, config.Level, config.MaxSize, config.VerifyInterval)
	if err != nil {
		newAccess.Close()
		return fmt.Errorf("failed to initialize app logger: %w", err)
	}

	oldApp, oldAccess := App, Access
	Access = newAccess
	App = newApp

	oldApp.Close()
	oldAccess.Close()
	return nil
}

// Close flushes and closes the global loggers
func Close() error {
	appErr := App.Close()
	accessErr := Access.Close()
	if appErr != nil {
		return appErr
	}
	return accessErr
}

// formatValue formats a value for logfmt, quoting if necessary
func formatValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if s == "" || strings.ContainsAny(s, " =\"\\") || strings.IndexFunc(s, needsEscape) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

// needsEscape reports runes that would let a value break out of its log line
func needsEscape(r rune) bool {
	return !unicode.IsPrint(r) || r == utf8.RuneError
}

// formatPairs renders alternating key/value pairs, dropping a trailing key
func formatPairs(keyvals []interface{}) []string {
	var parts []string
	for i := 0; i+1 < len(keyvals); i += 2 {
		parts = append(parts, fmt.Sprintf("%s=%s", toString(keyvals[i]), formatValue(toString(keyvals[i+1]))))
	}
	return parts
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
}
