package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug, Format: "json"}).WithComponent(ComponentSettlement)
	l.InfoContext(context.Background(), "settled", NewFields().WithTransactions(2).WithError(errors.New("x"), ErrorTypeInternal).ToSlice()...)

	out := buf.String()
	for _, want := range []string{`"component":"settlement"`, `"transactions":2`, `"error_type":"internal_error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestNewHandlerFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "pretty"} {
		var buf bytes.Buffer
		l := New(Config{Output: &buf, Format: format})
		l.Info("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("format %s: output %q missing message", format, buf.String())
		}
	}
}

func TestMiddlewareSetsRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Format: "json"})

	var got *Logger
	h := Middleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id not echoed")
	}
	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("logger not attached to context")
	}
	if !strings.Contains(buf.String(), `"status_code":418`) || !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected default logger")
	}
}
