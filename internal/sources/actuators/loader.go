package actuators

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader reads the actuator definitions file.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the file. {{VAR}} placeholders are replaced with the
// matching environment variable before parsing.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read actuator file: %w", err)
	}

	data = expandTemplateVariables(data)

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse actuator yaml: %w", err)
	}

	return file, nil
}

// expandTemplateVariables swaps {{NAME}} for $NAME from the environment.
// Unset variables expand to an empty string.
func expandTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(m[2 : len(m)-2]))
		return []byte(os.Getenv(name))
	})
}
