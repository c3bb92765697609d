package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

func TestHeartbeatBlinks(t *testing.T) {
	log := logger.New("error", false)
	pin := actuator.NewPin(false)

	hb := NewHeartbeat(pin, log, 10*time.Millisecond)
	if err := hb.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hb.Beats() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("heartbeat only beat %d times", hb.Beats())
		}
		time.Sleep(5 * time.Millisecond)
	}
	hb.Stop()

	beats := hb.Beats()
	if pin.IsHigh() != (beats%2 == 1) {
		t.Errorf("pin level = %v after %d beats", pin.IsHigh(), beats)
	}

	time.Sleep(30 * time.Millisecond)
	if got := hb.Beats(); got != beats {
		t.Errorf("heartbeat kept beating after Stop: %d -> %d", beats, got)
	}
}

func TestHeartbeatStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hb := NewHeartbeat(actuator.NewPin(false), logger.New("error", false), time.Hour)
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	cancel()

	stopped := make(chan struct{})
	go func() {
		hb.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the context was cancelled")
	}
}
