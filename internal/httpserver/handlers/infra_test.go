package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
	"github.com/MrSnakeDoc/ledctl/internal/logger"
	redisstore "github.com/MrSnakeDoc/ledctl/internal/store/redis"
)

func getInfra(t *testing.T, d deps.Deps) infraResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	Infra(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/infra", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body infraResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestInfraMirror(t *testing.T) {
	addr := os.Getenv("LEDCTL_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDCTL_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("LEDCTL_REDIS_PASSWORD")})
	t.Cleanup(func() { _ = client.Close() })

	suffix := uuid.NewString()
	def, green := "led-"+suffix, "green-"+suffix
	t.Cleanup(func() {
		_ = client.Del(context.Background(),
			redisstore.TogglesKey(def), redisstore.LevelKey(def),
			redisstore.TogglesKey(green), redisstore.LevelKey(green)).Err()
	})

	bank, err := actuator.NewBank(actuator.RegimeMutex,
		actuator.Actuator{Name: def, Output: actuator.NewPin(true)},
		actuator.Actuator{ID: 7, Name: green, Output: actuator.NewPin(false)})
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	t.Cleanup(func() { _ = bank.Close() })

	store := redisstore.NewStore(client)
	d := deps.Deps{
		Logger:    logger.Nop(),
		StartTime: time.Now(),
		Bank:      bank,
		Store:     store,
		Journal:   journal.New(store, logger.Nop(), 4, time.Second),
		Ready:     new(atomic.Bool),
	}
	if err := d.Journal.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Two unbound ids both land on the default actuator's keys.
	for _, path := range []string{"/toggle_led/2", "/toggle_led/40"} {
		rec := httptest.NewRecorder()
		ledRouter(d).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, rec.Code)
		}
	}
	if err := d.Journal.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	body := getInfra(t, d)
	if body.Mode != "nominal" {
		t.Errorf("mode = %q, want nominal", body.Mode)
	}
	if c := body.Components["journal"]; !c.OK || c.Mode != "redis" {
		t.Errorf("journal component = %+v, want ok redis", c)
	}
	if body.Journal == nil || body.Journal.Written != 2 {
		t.Errorf("journal stats = %+v, want 2 written", body.Journal)
	}

	want := map[string]mirrorEntry{
		def:   {Name: def, Toggles: 2, Last: "ON"},
		green: {Name: green, Toggles: 0},
	}
	if len(body.Mirror) != len(want) {
		t.Fatalf("mirror = %+v, want %d entries", body.Mirror, len(want))
	}
	for _, got := range body.Mirror {
		if got != want[got.Name] {
			t.Errorf("mirror entry = %+v, want %+v", got, want[got.Name])
		}
	}
}

func TestInfraJournalUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	d := testDeps(t)
	d.Store = redisstore.NewStore(client)
	d.Journal = journal.New(d.Store, logger.Nop(), 4, time.Second)

	body := getInfra(t, d)
	if body.Mode != "degraded" {
		t.Errorf("mode = %q, want degraded", body.Mode)
	}
	if c := body.Components["journal"]; c.OK || c.Error == "" {
		t.Errorf("journal component = %+v, want failing with an error", c)
	}
	if len(body.Mirror) != 0 {
		t.Errorf("mirror = %+v, want none while redis is down", body.Mirror)
	}
	if len(body.Actuators) != 2 {
		t.Errorf("actuators = %+v, want both levels", body.Actuators)
	}
}
