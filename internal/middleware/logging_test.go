package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testLogEntry represents a parsed JSON log entry for testing.
type testLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	Viewer    string `json:"viewer"`
	ErrorCode string `json:"error_code"`
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) testLogEntry {
	t.Helper()
	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/posts?userId=u1&page=2", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseEntry(t, buf)
	if entry.Method != "GET" || entry.Path != "/posts" {
		t.Errorf("unexpected method/path %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("expected status 200, got %d", entry.Status)
	}
	if entry.Size != 5 {
		t.Errorf("expected size 5, got %d", entry.Size)
	}
	if entry.Viewer != "u1" {
		t.Errorf("expected viewer u1, got %q", entry.Viewer)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.ErrorCode != "" {
		t.Errorf("success should not carry error_code, got %q", entry.ErrorCode)
	}
}

func TestLogging_WithRequestID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := RequestID(Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.Header.Set(RequestIDHeader, "req-456")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if entry := parseEntry(t, buf); entry.RequestID != "req-456" {
		t.Errorf("expected request_id req-456, got %q", entry.RequestID)
	}
}

func TestLogging_ErrorCodeFromHandler(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
		wantCode  string
	}{
		{"client error", http.StatusNotFound, "WARN", "not_found"},
		{"server error", http.StatusInternalServerError, "ERROR", "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			handler := Logging(newTestLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := SetErrorCode(r.Context(), tt.wantCode)
				UpdateResponseContext(w, ctx)
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/x", nil))

			entry := parseEntry(t, buf)
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
			if entry.ErrorCode != tt.wantCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.wantCode)
			}
		})
	}
}

func TestUpdateResponseContext_ThroughWrappers(t *testing.T) {
	buf := &bytes.Buffer{}
	metrics := NewMetrics()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		UpdateResponseContext(w, SetErrorCode(r.Context(), "validation_error"))
		w.WriteHeader(http.StatusBadRequest)
	})
	handler := Logging(newTestLogger(buf))(HTTPMetrics(metrics)(inner))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users", nil))

	if entry := parseEntry(t, buf); entry.ErrorCode != "validation_error" {
		t.Errorf("error_code = %q, want validation_error", entry.ErrorCode)
	}
}

func TestUpdateResponseContext_Unwrapped(t *testing.T) {
	rr := httptest.NewRecorder()
	UpdateResponseContext(rr, SetErrorCode(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "x"))
	if rr.Code != http.StatusOK {
		t.Errorf("plain writer should be untouched")
	}
}

func TestRecover(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newTestLogger(buf)
	handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal_error") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "panic serving request") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		debug      bool
	}{
		{"development", "", true},
		{"production", "", false},
		{"production", "debug", true},
		{"development", "warn", false},
		{"development", "nonsense", true},
	}
	for _, tt := range tests {
		logger := NewLogger(tt.env, tt.level)
		if got := logger.Enabled(t.Context(), slog.LevelDebug); got != tt.debug {
			t.Errorf("NewLogger(%q, %q) debug enabled = %v, want %v", tt.env, tt.level, got, tt.debug)
		}
	}
}
