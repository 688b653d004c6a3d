package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	golog "github.com/fclairamb/go-log"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
	LogLevelPanic: 4,
}

// AppLogger is a leveled key/value logger implementing go-log.Logger
type AppLogger struct {
	level   LogLevel
	logger  *log.Logger
	writer  *RotatingWriter // nil if logging to stdout
	context []interface{}
}

// NewAppLogger creates a new application logger writing to logPath, or to
// stdout when logPath is empty
func NewAppLogger(logPath string, level LogLevel, maxSize int64, verifyInterval time.Duration) (*AppLogger, error) {
	var writer io.Writer = os.Stdout
	var rotatingWriter *RotatingWriter

	if logPath != "" {
		rw, err := NewRotatingWriter(logPath, maxSize, verifyInterval)
		if err != nil {
			return nil, fmt.Errorf("creating rotating writer: %w", err)
		}
		writer = rw
		rotatingWriter = rw
	}

	return newAppLogger(writer, level, rotatingWriter), nil
}

// NewWriterLogger creates an application logger writing to w
func NewWriterLogger(w io.Writer, level LogLevel) *AppLogger {
	return newAppLogger(w, level, nil)
}

func newAppLogger(w io.Writer, level LogLevel, rw *RotatingWriter) *AppLogger {
	if _, ok := levelRank[level]; !ok {
		level = LogLevelInfo
	}
	return &AppLogger{
		level:  level,
		logger: log.New(w, "", 0), // formatting is done by log()
		writer: rw,
	}
}

func (l *AppLogger) shouldLog(level LogLevel) bool {
	return levelRank[level] >= levelRank[l.level]
}

func (l *AppLogger) log(level LogLevel, message string, keyvals ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	pairs := formatPairs(append(append([]interface{}{}, l.context...), keyvals...))
	line := fmt.Sprintf("%s %s: %s", timestamp(), level, message)
	if len(pairs) > 0 {
		line += " " + strings.Join(pairs, " ")
	}
	l.logger.Print(line)
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}

	str := fmt.Sprintf("%v", v)
	str = strings.ReplaceAll(str, "\n", " ")
	str = strings.ReplaceAll(str, "\r", " ")
	str = strings.ReplaceAll(str, "\t", " ")
	return strings.Join(strings.Fields(str), " ")
}

// Debug implements go-log.Logger
func (l *AppLogger) Debug(message string, keyvals ...interface{}) {
	l.log(LogLevelDebug, message, keyvals...)
}

// Info implements go-log.Logger
func (l *AppLogger) Info(message string, keyvals ...interface{}) {
	l.log(LogLevelInfo, message, keyvals...)
}

// Warn implements go-log.Logger
func (l *AppLogger) Warn(message string, keyvals ...interface{}) {
	l.log(LogLevelWarn, message, keyvals...)
}

// Error implements go-log.Logger
func (l *AppLogger) Error(message string, keyvals ...interface{}) {
	l.log(LogLevelError, message, keyvals...)
}

// Panic implements go-log.Logger. It logs and does not panic.
func (l *AppLogger) Panic(message string, keyvals ...interface{}) {
	l.log(LogLevelPanic, message, keyvals...)
}

// With implements go-log.Logger. The returned logger shares the output of l
// and prefixes every entry with keyvals.
func (l *AppLogger) With(keyvals ...interface{}) golog.Logger {
	return &AppLogger{
		level:   l.level,
		logger:  l.logger,
		context: append(append([]interface{}{}, l.context...), keyvals...),
	}
}

// IsDebug returns true if the logger is at debug level
func (l *AppLogger) IsDebug() bool {
	return l.level == LogLevelDebug
}

// Close stops background rotation and closes the log file
func (l *AppLogger) Close() error {
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}

var _ golog.Logger = (*AppLogger)(nil)
