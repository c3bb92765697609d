package actuator

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Regime selects how the Bank serialises access to its outputs.
type Regime string

const (
	RegimeMutex Regime = "mutex"
	RegimeLoop  Regime = "loop"
)

var (
	ErrDuplicateID   = errors.New("actuator: duplicate id")
	ErrDuplicateName = errors.New("actuator: duplicate name")
	ErrNilOutput     = errors.New("actuator: nil output")
	ErrUnknownRegime = errors.New("actuator: unknown regime")
)

// Actuator binds an Output to a name and, unless it is the default one, to
// an 8-bit id.
type Actuator struct {
	ID     uint8
	Name   string
	Output Output
}

// Level is a point-in-time reading of one actuator.
type Level struct {
	ID      uint8  `json:"id"`
	Name    string `json:"name"`
	On      bool   `json:"on"`
	Default bool   `json:"default,omitempty"`
}

// outputs is the value guarded by the cell. The map is never modified after
// construction; only the outputs behind it change.
type outputs struct {
	def   Output
	bound map[uint8]Output
}

func (o *outputs) pick(id uint8) Output {
	if out, ok := o.bound[id]; ok {
		return out
	}
	return o.def
}

// Bank is the shared actuator state. Ids that are not bound to an actuator
// of their own address the default actuator.
type Bank struct {
	cell    Cell[outputs]
	defName string
	names   map[uint8]string
	ids     []uint8
}

// NewBank builds a bank around def plus any extra bound actuators.
func NewBank(regime Regime, def Actuator, extra ...Actuator) (*Bank, error) {
	if def.Output == nil {
		return nil, fmt.Errorf("default actuator %q: %w", def.Name, ErrNilOutput)
	}

	state := outputs{def: def.Output, bound: make(map[uint8]Output, len(extra))}
	names := make(map[uint8]string, len(extra))
	ids := make([]uint8, 0, len(extra))
	taken := map[string]bool{def.Name: true}
	for _, a := range extra {
		if a.Output == nil {
			return nil, fmt.Errorf("actuator %d (%s): %w", a.ID, a.Name, ErrNilOutput)
		}
		if _, dup := state.bound[a.ID]; dup {
			return nil, fmt.Errorf("actuator %d (%s): %w", a.ID, a.Name, ErrDuplicateID)
		}
		if taken[a.Name] {
			return nil, fmt.Errorf("actuator %d (%s): %w", a.ID, a.Name, ErrDuplicateName)
		}
		taken[a.Name] = true
		state.bound[a.ID] = a.Output
		names[a.ID] = a.Name
		ids = append(ids, a.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var cell Cell[outputs]
	switch regime {
	case RegimeMutex:
		cell = NewMutexCell(state)
	case RegimeLoop:
		cell = NewLoopCell(state)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegime, regime)
	}

	return &Bank{
		cell:    cell,
		defName: def.Name,
		names:   names,
		ids:     ids,
	}, nil
}

// Toggle flips the actuator selected by id and returns the level it ended
// up at.
func (b *Bank) Toggle(id uint8) (bool, error) {
	return With(b.cell, func(o *outputs) bool {
		out := o.pick(id)
		out.Toggle()
		return out.IsHigh()
	})
}

// State reads the current level without changing it.
func (b *Bank) State(id uint8) (bool, error) {
	return With(b.cell, func(o *outputs) bool {
		return o.pick(id).IsHigh()
	})
}

// Name returns the name of the actuator id resolves to.
func (b *Bank) Name(id uint8) string {
	if name, ok := b.names[id]; ok {
		return name
	}
	return b.defName
}

// Bound reports whether id has an actuator of its own.
func (b *Bank) Bound(id uint8) bool {
	_, ok := b.names[id]
	return ok
}

// Snapshot reads every actuator in one critical section: the default one
// first, then bound ones by ascending id.
func (b *Bank) Snapshot() ([]Level, error) {
	return With(b.cell, func(o *outputs) []Level {
		levels := make([]Level, 0, len(b.ids)+1)
		levels = append(levels, Level{Name: b.defName, On: o.def.IsHigh(), Default: true})
		for _, id := range b.ids {
			levels = append(levels, Level{ID: id, Name: b.names[id], On: o.bound[id].IsHigh()})
		}
		return levels
	})
}

// Close releases the cell when it owns a goroutine.
func (b *Bank) Close() error {
	if c, ok := b.cell.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
