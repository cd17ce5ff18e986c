// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package watchdog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestProbeSendsPing(t *testing.T) {
	var got struct {
		ID     *string `json:"id"`
		Method string  `json:"method"`
	}
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		w.Write([]byte(`{"id":"1","method":"ping","result":null}`))
	}))
	defer srv.Close()

	w := New(443, "probe-token")
	w.url = srv.URL

	if err := w.probe(context.Background()); err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if got.Method != "ping" {
		t.Errorf("probed method = %q, want ping", got.Method)
	}
	if got.ID == nil || *got.ID != "1" {
		t.Errorf("probed id = %v, want 1", got.ID)
	}
}

func TestServeExitsOnProbeFailure(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	w := New(443, "probe-token")
	w.url = srv.URL
	w.interval = 5 * time.Millisecond

	exited := make(chan int, 1)
	w.exit = func(code int) { exited <- code }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Serve(ctx)

	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
	case <-ctx.Done():
		t.Fatal("watchdog never exited on a dead endpoint")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	w := New(443, "probe-token")
	w.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
