// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type countingService struct {
	runs atomic.Int64
}

func (s *countingService) Serve(ctx context.Context) error {
	s.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeAppliesDefaults(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{})

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %f, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("FailureDecay = %f, want 30.0", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())

	apiSvc := &countingService{}
	bgSvc := &countingService{}
	tree.AddAPIService(apiSvc)
	tree.AddBackgroundService(bgSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for apiSvc.runs.Load() == 0 || bgSvc.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("services never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("supervisor stopped with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}
}
