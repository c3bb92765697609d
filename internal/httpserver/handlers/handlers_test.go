package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/mw"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
)

type memorySink struct {
	events chan journal.Event
}

func (s *memorySink) Write(_ context.Context, ev journal.Event) error {
	s.events <- ev
	return nil
}

func testDeps(t *testing.T) deps.Deps {
	t.Helper()
	bank, err := actuator.NewBank(actuator.RegimeMutex,
		actuator.Actuator{Name: "led2", Output: actuator.NewPin(true)},
		actuator.Actuator{ID: 7, Name: "green", Output: actuator.NewPin(false)})
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	t.Cleanup(func() { _ = bank.Close() })
	return deps.Deps{
		Logger:    logger.Nop(),
		StartTime: time.Now(),
		Version:   "test",
		Board:     "host",
		Bank:      bank,
		Ready:     new(atomic.Bool),
	}
}

func ledRouter(d deps.Deps) http.Handler {
	r := chi.NewRouter()
	r.With(mw.Uint8Param("id")).Get("/toggle_led/{id}", ToggleLED(d))
	r.With(mw.Uint8Param("id")).Get("/led/{id}", LEDState(d))
	return r
}

func TestToggleLEDRecordsJournal(t *testing.T) {
	d := testDeps(t)
	sink := &memorySink{events: make(chan journal.Event, 1)}
	d.Journal = journal.New(sink, logger.Nop(), 4, time.Second)
	d.Journal.Start(context.Background())
	t.Cleanup(func() { _ = d.Journal.Stop() })

	rec := httptest.NewRecorder()
	ledRouter(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/toggle_led/7", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ON" {
		t.Fatalf("response = %d %q, want 200 ON", rec.Code, rec.Body.String())
	}

	select {
	case ev := <-sink.events:
		if ev.ID != 7 || ev.Name != "green" || !ev.On {
			t.Errorf("event = %+v, want id 7 green ON", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("toggle was not journaled")
	}
}

func TestLEDStateDoesNotToggle(t *testing.T) {
	d := testDeps(t)
	h := ledRouter(d)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/led/2", nil))
		if rec.Body.String() != "ON" {
			t.Fatalf("GET /led/2 = %q, want ON", rec.Body.String())
		}
	}
}

func TestToggleLEDClosedBank(t *testing.T) {
	d := testDeps(t)
	bank, err := actuator.NewBank(actuator.RegimeLoop, actuator.Actuator{Name: "led", Output: actuator.NewPin(false)})
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	_ = bank.Close()
	d.Bank = bank

	rec := httptest.NewRecorder()
	ledRouter(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/toggle_led/1", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	d := testDeps(t)
	h := Readyz(d)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d, want 503", rec.Code)
	}

	d.Ready.Store(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after ready: status = %d, want 200", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	d := testDeps(t)
	rec := httptest.NewRecorder()
	Healthz(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body healthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body.Status != "ok" || body.Board != "host" || body.Version != "test" || body.Actuators != 2 {
		t.Errorf("healthz = %+v", body)
	}
}

func TestHealthzStoppedBank(t *testing.T) {
	d := testDeps(t)
	bank, err := actuator.NewBank(actuator.RegimeLoop, actuator.Actuator{Name: "led", Output: actuator.NewPin(false)})
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	_ = bank.Close()
	d.Bank = bank

	rec := httptest.NewRecorder()
	Healthz(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body healthzResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable || body.Status != "stopped" {
		t.Errorf("healthz = %d %+v, want 503 stopped", rec.Code, body)
	}
}

func TestInfraWithoutJournal(t *testing.T) {
	d := testDeps(t)
	rec := httptest.NewRecorder()
	Infra(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/infra", nil))

	var body infraResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mode != "nominal" {
		t.Errorf("mode = %q, want nominal", body.Mode)
	}
	if len(body.Actuators) != 2 || !body.Actuators[0].Default || body.Actuators[1].ID != 7 {
		t.Errorf("actuators = %+v", body.Actuators)
	}
	if c := body.Components["journal"]; c.Mode != "disabled" {
		t.Errorf("journal component = %+v, want disabled", c)
	}
}

func TestDetermineMode(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]componentStatus
		want       string
	}{
		{
			name:       "all ok",
			components: map[string]componentStatus{"actuators": {OK: true}, "journal": {OK: true}},
			want:       "nominal",
		},
		{
			name:       "journal down",
			components: map[string]componentStatus{"actuators": {OK: true}, "journal": {OK: false}},
			want:       "degraded",
		},
		{
			name:       "actuators down",
			components: map[string]componentStatus{"actuators": {OK: false}, "journal": {OK: true}},
			want:       "critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := determineMode(tt.components); got != tt.want {
				t.Errorf("determineMode() = %q, want %q", got, tt.want)
			}
		})
	}
}
