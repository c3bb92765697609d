package actuators

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of the actuator definitions file.
type File struct {
	Actuators []Definition `yaml:"actuators"`
}

// Definition describes one actuator bound to an 8-bit id.
type Definition struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Initial Level  `yaml:"initial,omitempty"`
}

// Level accepts on/off, high/low and yaml booleans.
type Level bool

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "on", "high", "1":
		*l = true
		return nil
	case "off", "low", "0", "":
		*l = false
		return nil
	}
	b, err := strconv.ParseBool(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid level %q", node.Line, node.Value)
	}
	*l = Level(b)
	return nil
}
