package redis

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "toggles default", got: TogglesKey("led"), want: "ledctl:toggles:led"},
		{name: "toggles bound", got: TogglesKey("green"), want: "ledctl:toggles:green"},
		{name: "level", got: LevelKey("led"), want: "ledctl:led:led"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("key = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
