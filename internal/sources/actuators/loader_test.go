package actuators

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actuators.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `---
actuators:
  - id: 1
    name: green
    initial: on
  - id: 3
    name: red
    initial: false
  - id: 4
    name: blue
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(file.Actuators) != 3 {
		t.Fatalf("Load() returned %d actuators, want 3", len(file.Actuators))
	}
	if !file.Actuators[0].Initial {
		t.Error("green should start on")
	}
	if file.Actuators[1].Initial || file.Actuators[2].Initial {
		t.Error("red and blue should start off")
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	t.Setenv("LEDCTL_TEST_LED_NAME", "porch")
	path := writeFile(t, `actuators:
  - id: 9
    name: {{LEDCTL_TEST_LED_NAME}}
`)

	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := file.Actuators[0].Name; got != "porch" {
		t.Errorf("Name = %q, want porch", got)
	}
}

func TestLoaderLoadInvalidLevel(t *testing.T) {
	path := writeFile(t, `actuators:
  - id: 1
    name: green
    initial: dimmed
`)

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() with invalid level should return error")
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/actuators.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestExpandTemplateVariables(t *testing.T) {
	t.Setenv("LEDCTL_TEST_VAR", "value")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "set variable", input: "name: {{LEDCTL_TEST_VAR}}", expected: "name: value"},
		{name: "spaces inside braces", input: "name: {{ LEDCTL_TEST_VAR }}", expected: "name: value"},
		{name: "unset variable", input: "name: {{LEDCTL_TEST_UNSET}}", expected: "name: "},
		{name: "no template variables", input: "plain text", expected: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandTemplateVariables([]byte(tt.input))
			if string(result) != tt.expected {
				t.Errorf("expandTemplateVariables() = %q, want %q", string(result), tt.expected)
			}
		})
	}
}
