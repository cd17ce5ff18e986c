// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watchdog probes the server's own API endpoint over loopback.
// A server that stops answering its own ping is beyond self-repair, so
// the watchdog exits the process and leaves the restart to the outer
// supervisor (systemd or similar).
package watchdog

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/rpc"
)

const probeInterval = 60 * time.Second

// Watchdog is a suture service that pings the API every minute.
type Watchdog struct {
	url      string
	interval time.Duration
	client   *http.Client

	// exit terminates the process. Swapped out in tests.
	exit func(code int)
}

// New builds a watchdog for the API listening on port. The probe token
// must belong to a valid anonym session.
func New(port int, anonymToken string) *Watchdog {
	return &Watchdog{
		url:      fmt.Sprintf("https://localhost:%d/api?token=%s", port, anonymToken),
		interval: probeInterval,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				// The probe talks to the server's own certificate, which
				// does not carry localhost as a subject.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		exit: os.Exit,
	}
}

// Serve implements suture.Service.
func (w *Watchdog) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logging.Info().Msg("Watchdog started")

	for {
		select {
		case <-ticker.C:
			if err := w.probe(ctx); err != nil {
				logging.Error().Err(err).Msg("Watchdog request error")
				w.exit(1)
				return nil
			}
			logging.Info().Msg("Heartbeat")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watchdog) probe(ctx context.Context) error {
	id := "1"
	body, err := json.Marshal(rpc.Request{ID: &id, Method: "ping"})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (w *Watchdog) String() string {
	return "watchdog"
}
