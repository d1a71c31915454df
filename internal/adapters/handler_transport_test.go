package adapters

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHandlerTransport_ServesHandler(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, r.Method+" "+r.URL.Path+" "+string(body))
	})
	client := &http.Client{Transport: NewHandlerTransport(h)}

	resp, err := client.Post("http://backend.local/api/expenses", "text/plain", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "POST /api/expenses payload" {
		t.Errorf("body = %q", got)
	}
}

func TestHandlerTransport_CancelledContext(t *testing.T) {
	called := false
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	client := &http.Client{Transport: NewHandlerTransport(h)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://backend.local/api/houses", nil)
	if _, err := client.Do(req); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if called {
		t.Error("handler should not run for a cancelled request")
	}
}
