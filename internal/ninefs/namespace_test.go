package ninefs

import (
	"testing"

	"git.sr.ht/~moody/ninep"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
)

func newTestBank(t *testing.T) *actuator.Bank {
	t.Helper()
	bank, err := actuator.NewBank(actuator.RegimeMutex,
		actuator.Actuator{Name: "led2", Output: actuator.NewPin(true)},
		actuator.Actuator{ID: 7, Name: "green", Output: actuator.NewPin(false)})
	if err != nil {
		t.Fatalf("NewBank() error = %v", err)
	}
	t.Cleanup(func() { _ = bank.Close() })
	return bank
}

func TestStatusTree(t *testing.T) {
	bank := newTestBank(t)
	ns, err := NewStatus(bank, "1.2.3")
	if err != nil {
		t.Fatalf("NewStatus() error = %v", err)
	}

	names, err := ns.List("/leds")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "default" || names[1] != "7" {
		t.Errorf("List(/leds) = %v, want [default 7]", names)
	}

	data, err := ns.ReadFile("/version")
	if err != nil || string(data) != "1.2.3\n" {
		t.Errorf("ReadFile(/version) = %q, %v", data, err)
	}
}

func TestStatusFollowsToggles(t *testing.T) {
	bank := newTestBank(t)
	ns, err := NewStatus(bank, "dev")
	if err != nil {
		t.Fatalf("NewStatus() error = %v", err)
	}

	tests := []struct {
		path   string
		before string
		after  string
		toggle uint8
	}{
		{path: "/leds/7", before: "OFF\n", after: "ON\n", toggle: 7},
		{path: "/leds/default", before: "ON\n", after: "OFF\n", toggle: 200},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			data, err := ns.ReadFile(tt.path)
			if err != nil || string(data) != tt.before {
				t.Fatalf("before toggle: %q, %v, want %q", data, err, tt.before)
			}
			if _, err := bank.Toggle(tt.toggle); err != nil {
				t.Fatalf("Toggle() error = %v", err)
			}
			data, err = ns.ReadFile(tt.path)
			if err != nil || string(data) != tt.after {
				t.Errorf("after toggle: %q, %v, want %q", data, err, tt.after)
			}
		})
	}
}

func TestNamespaceLookupErrors(t *testing.T) {
	ns := NewNamespace()
	if err := ns.AddFile("/", "readme", func() ([]byte, error) { return []byte("hi"), nil }); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "relative", path: "readme", want: errNoAbs},
		{name: "missing", path: "/nope", want: errNoFile},
		{name: "through a file", path: "/readme/x", want: errNoDir},
		{name: "directory", path: "/", want: errNoFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ns.ReadFile(tt.path); err != tt.want {
				t.Errorf("ReadFile(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}

	if err := ns.Mkdir("/readme", "sub"); err != errNoDir {
		t.Errorf("Mkdir under a file error = %v, want %v", err, errNoDir)
	}
}

func TestWalk(t *testing.T) {
	ns := NewNamespace()
	if err := ns.Mkdir("/", "leds"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	root := &ninep.Qid{Path: 0}
	q := ns.Walk(root, "leds")
	if q == nil {
		t.Fatal("Walk(leds) = nil")
	}
	if q.Type != byte(ninep.QTDir) {
		t.Errorf("leds qid type = %d, want dir", q.Type)
	}
	if ns.Walk(root, "missing") != nil {
		t.Error("Walk(missing) should be nil")
	}
}
