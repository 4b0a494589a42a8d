package logging

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
)

func TestMultiSinkFansOutToAllWriters(t *testing.T) {
	var a, b bytes.Buffer
	sink := NewMultiSink(&a, &b)
	if _, err := sink.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if a.String() != "hello" || b.String() != "hello" {
		t.Fatalf("expected both sinks to receive the write, got %q and %q", a.String(), b.String())
	}
}

func TestMultiSinkIsConcurrencySafe(t *testing.T) {
	var buf bytes.Buffer
	sink := NewMultiSink(&buf)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = sink.Write([]byte("x"))
		}()
	}
	wg.Wait()
	if buf.Len() != 50 {
		t.Fatalf("expected 50 bytes written, got %d", buf.Len())
	}
}

func TestNewBuildsAllThreeLoggers(t *testing.T) {
	loggers, err := New(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer loggers.Close()
	if loggers.Base == nil || loggers.Access == nil || loggers.Error == nil {
		t.Fatalf("expected all three loggers to be non-nil")
	}
}

func TestNewRejectsUnwritableLogPath(t *testing.T) {
	if _, err := New(Config{AccessLogPath: "/nonexistent-dir/access.log"}); err == nil {
		t.Fatalf("expected an error for an unwritable access log path")
	}
}

func TestLogAccessEmitsExpectedFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Loggers{Access: slog.New(slog.NewJSONHandler(&buf, nil))}
	l.LogAccess("203.0.113.5", "GET", "/api/v1/users", "HTTP/1.1", 200, 128)
	out := buf.String()
	for _, want := range []string{`"client_ip":"203.0.113.5"`, `"method":"GET"`, `"status":200`, `"response_size":128`} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("expected %q in access log line, got %s", want, out)
		}
	}
}
