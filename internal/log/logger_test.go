package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

// records decodes one JSON object per line and counts the raw occurrences of
// the component key, which a map would hide.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if n := strings.Count(line, `"component":`); n != 1 {
			t.Fatalf("want one component attribute, got %d: %s", n, line)
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestComponentIsWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	app := jsonLogger(&buf, ComponentApp)

	app.Info("starting")
	app.WithComponent(ComponentHTTP).With(FieldRequestID, "req_1").Info("request")
	app.WithComponent(ComponentHTTP).Warn("override", FieldComponent, ComponentResident)

	recs := records(t, &buf)
	if len(recs) != 3 {
		t.Fatalf("got %d records", len(recs))
	}
	want := []string{ComponentApp, ComponentHTTP, ComponentResident}
	for i, rec := range recs {
		if rec[FieldComponent] != want[i] {
			t.Errorf("record %d component = %v, want %s", i, rec[FieldComponent], want[i])
		}
	}
	if recs[1][FieldRequestID] != "req_1" {
		t.Errorf("request id lost: %v", recs[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewHandler(&buf, "json", slog.LevelInfo)).Info("x")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json format not used: %s", buf.String())
	}

	buf.Reset()
	slog.New(NewHandler(&buf, "text", slog.LevelWarn)).Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level: %s", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("fallback logger should report an unknown component")
	}

	var buf bytes.Buffer
	base := jsonLogger(&buf, ComponentApp)
	h := Middleware(base)(ComponentMiddleware(ComponentDevAPI)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "handled")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/houses", nil))

	recs := records(t, &buf)
	if recs[0][FieldComponent] != ComponentDevAPI {
		t.Errorf("component = %v, want %s", recs[0][FieldComponent], ComponentDevAPI)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentPayment).
		WithOperation(OpCreate).
		WithEntity("payment", 7).
		WithError(errors.New("boom"))

	if f[FieldComponent] != ComponentPayment || f[FieldOperation] != OpCreate {
		t.Errorf("fields = %v", f)
	}
	if f[FieldError] != "boom" {
		t.Errorf("error field = %v", f[FieldError])
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice length = %d, want %d", got, 2*len(f))
	}
}
