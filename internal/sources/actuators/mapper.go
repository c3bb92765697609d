package actuators

import (
	"fmt"
	"math"
	"strings"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
)

// OutputFactory creates the output backing a named actuator.
type OutputFactory func(name string, initial bool) actuator.Output

// Mapper converts definitions into bank actuators.
type Mapper struct {
	newOutput OutputFactory
}

func NewMapper(newOutput OutputFactory) *Mapper {
	return &Mapper{newOutput: newOutput}
}

// Map validates every definition and builds its output. Ids must fit in a
// uint8; ids and names must be unique.
func (m *Mapper) Map(file File) ([]actuator.Actuator, error) {
	seen := make(map[int]string, len(file.Actuators))
	names := make(map[string]bool, len(file.Actuators))
	out := make([]actuator.Actuator, 0, len(file.Actuators))

	for i, def := range file.Actuators {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("actuator #%d: name is required", i)
		}
		if def.ID < 0 || def.ID > math.MaxUint8 {
			return nil, fmt.Errorf("actuator %q: id %d out of range 0-255", name, def.ID)
		}
		if prev, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("actuator %q: id %d already used by %q", name, def.ID, prev)
		}
		if names[name] {
			return nil, fmt.Errorf("actuator %q: name defined twice", name)
		}
		seen[def.ID] = name
		names[name] = true

		out = append(out, actuator.Actuator{
			ID:     uint8(def.ID),
			Name:   name,
			Output: m.newOutput(name, bool(def.Initial)),
		})
	}

	return out, nil
}
