package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// HTTPLogger appends one line per request to an access log file.
// A nil or unopened logger is a no-op, so local runs without HTTP_LOG_FILE
// behave the same.
type HTTPLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewHTTPLogger opens the access log file named by HTTP_LOG_FILE, if set.
func NewHTTPLogger(log *slog.Logger) *HTTPLogger {
	path := os.Getenv("HTTP_LOG_FILE")
	if path == "" {
		return &HTTPLogger{}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn("failed to open HTTP access log, access logging disabled",
			slog.String("path", path), Error(err))
		return &HTTPLogger{}
	}

	return &HTTPLogger{file: f}
}

// LogRequest writes a single access log line.
func (l *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	if l == nil || l.file == nil {
		return
	}

	line := fmt.Sprintf("%s %s %s %s %d %s %q %s\n",
		time.Now().UTC().Format(time.RFC3339), ip, method, uri, status, latency, userAgent, requestID)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(line)
}

// Close closes the underlying file.
func (l *HTTPLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
