// Package logging builds the process-wide structured logger and the
// console/access/error sink triple carried over from the reference
// implementation's Logger class (see SPEC_FULL.md, AMBIENT STACK).
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config selects the log level and the file destinations for the
// access and error sinks. An empty AccessLogPath/ErrorLogPath falls
// back to stdout/stderr respectively.
type Config struct {
	Level         string
	AccessLogPath string
	ErrorLogPath  string
}

// MultiSink fans a single write out to several io.Writer targets under
// one mutex per sink; every writer of the sink shares that mutex.
type MultiSink struct {
	mu      sync.Mutex
	writers []io.Writer
}

// NewMultiSink wraps writers behind one mutex-guarded Write.
func NewMultiSink(writers ...io.Writer) *MultiSink {
	return &MultiSink{writers: writers}
}

func (m *MultiSink) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writers {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Loggers bundles the base, access, and error loggers built from a
// single Config.
type Loggers struct {
	Base   *slog.Logger
	Access *slog.Logger
	Error  *slog.Logger

	closers []io.Closer
}

// New builds the base/access/error logger triple. Level accepts
// "debug", "info", "warn", "error" (defaulting to info), matching
// keys/internal/observability/logging's switch.
func New(cfg Config) (*Loggers, error) {
	level := new(slog.LevelVar)
	switch cfg.Level {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	loggers := &Loggers{}

	consoleSink := NewMultiSink(os.Stdout)
	base := slog.New(slog.NewJSONHandler(consoleSink, &slog.HandlerOptions{Level: level}))
	loggers.Base = base

	accessWriter, err := openOrFallback(cfg.AccessLogPath, os.Stdout)
	if err != nil {
		return nil, err
	}
	if c, ok := accessWriter.(io.Closer); ok && accessWriter != os.Stdout {
		loggers.closers = append(loggers.closers, c)
	}
	accessSink := NewMultiSink(os.Stdout, accessWriter)
	loggers.Access = slog.New(slog.NewJSONHandler(accessSink, &slog.HandlerOptions{Level: level})).With("stream", "access")

	errorWriter, err := openOrFallback(cfg.ErrorLogPath, os.Stderr)
	if err != nil {
		return nil, err
	}
	if c, ok := errorWriter.(io.Closer); ok && errorWriter != os.Stderr {
		loggers.closers = append(loggers.closers, c)
	}
	errorSink := NewMultiSink(os.Stderr, errorWriter)
	loggers.Error = slog.New(slog.NewJSONHandler(errorSink, &slog.HandlerOptions{Level: level})).With("stream", "error")

	return loggers, nil
}

func openOrFallback(path string, fallback *os.File) (io.Writer, error) {
	if path == "" {
		return fallback, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases any open log files.
func (l *Loggers) Close() {
	for _, c := range l.closers {
		_ = c.Close()
	}
}

// LogAccess emits one access-log line for a completed request,
// matching §4.8's "access log line with client IP, method, target,
// protocol version on request; status and response size on response."
func (l *Loggers) LogAccess(clientIP, method, target, protoVersion string, status, size int) {
	l.Access.Info("request",
		"client_ip", clientIP,
		"method", method,
		"target", target,
		"protocol", protoVersion,
		"status", status,
		"response_size", size,
	)
}
