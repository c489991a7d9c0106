package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestLogger(t *testing.T) {
	buf := captureDefault(t)

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id header")
	}

	line := buf.String()
	for _, want := range []string{"HTTP request", "method=POST", "path=/v1/ingest", "status=418", "request_id="} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected log line to contain %q, got %q", want, line)
		}
	}
}

func TestLogger_ReusesRequestID(t *testing.T) {
	buf := captureDefault(t)

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("Expected request id abc-123, got %q", got)
	}
	if !strings.Contains(buf.String(), "request_id=abc-123") {
		t.Errorf("Expected log to carry request id, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "status=200") {
		t.Errorf("Expected default status 200, got %q", buf.String())
	}
}

func TestLogger_ServerErrorsLogAtErrorLevel(t *testing.T) {
	buf := captureDefault(t)

	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("Expected ERROR level, got %q", buf.String())
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	var w http.ResponseWriter = sr
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("Expected statusRecorder to implement http.Flusher")
	}
	f.Flush()
	if !rec.Flushed {
		t.Error("Expected underlying recorder to be flushed")
	}
}
