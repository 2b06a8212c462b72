package labels

import (
	"fmt"
	"image/color"
	"slices"
	"sync"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/imaging"
)

// State tracks which labels are currently picked in each control. It
// implements annotation.LabelSource and is safe for concurrent use, since
// file reloads arrive from a watcher goroutine.
type State struct {
	mu       sync.RWMutex
	set      *Set
	selected map[string][]string
}

var _ annotation.LabelSource = (*State)(nil)

// NewState wraps set with an empty selection. A nil set is treated as empty.
func NewState(set *Set) *State {
	if set == nil {
		set = &Set{}
	}
	return &State{set: set, selected: map[string][]string{}}
}

// Set returns the current label set.
func (s *State) Set() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// Replace swaps in a new label set. Selections whose control and value
// still exist survive the swap.
func (s *State) Replace(set *Set) {
	if set == nil {
		set = &Set{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := map[string][]string{}
	for name, values := range s.selected {
		c, ok := set.Control(name)
		if !ok {
			continue
		}
		for _, v := range values {
			if _, ok := c.Label(v); ok {
				kept[name] = append(kept[name], v)
			}
		}
		if c.Choice == ChoiceSingle && len(kept[name]) > 1 {
			kept[name] = kept[name][:1]
		}
	}
	s.set = set
	s.selected = kept
}

// Toggle flips a value in a control. In a single-choice control turning a
// value on turns the others off. It reports whether the value is now active.
func (s *State) Toggle(control, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(control, value)
	if err != nil {
		return false, err
	}
	cur := s.selected[control]
	if i := slices.Index(cur, value); i >= 0 {
		s.selected[control] = slices.Delete(slices.Clone(cur), i, i+1)
		return false, nil
	}
	if c.Choice == ChoiceSingle {
		s.selected[control] = []string{value}
	} else {
		s.selected[control] = append(slices.Clone(cur), value)
	}
	return true, nil
}

// Select makes value active, replacing the control's selection.
func (s *State) Select(control, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(control, value); err != nil {
		return err
	}
	s.selected[control] = []string{value}
	return nil
}

// ClearSelection deactivates every label in every control.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = map[string][]string{}
}

// Selected returns the active values of a control.
func (s *State) Selected(control string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected[control])
}

// AvailableStates lists every control with all of its values.
func (s *State) AvailableStates() []annotation.LabelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]annotation.LabelState, 0, len(s.set.Controls))
	for _, c := range s.set.Controls {
		values := make([]string, len(c.Labels))
		for i, l := range c.Labels {
			values[i] = l.Value
		}
		out = append(out, annotation.LabelState{From: c.Name, Type: c.Type, Values: values})
	}
	return out
}

// ActiveStates lists the controls with a current selection, in the order
// the set defines them.
func (s *State) ActiveStates() []annotation.LabelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []annotation.LabelState
	for _, c := range s.set.Controls {
		values := s.selected[c.Name]
		if len(values) == 0 {
			continue
		}
		out = append(out, annotation.LabelState{From: c.Name, Type: c.Type, Values: slices.Clone(values)})
	}
	return out
}

// Color returns the color for the first value of a region's labels that the
// set knows, or a neutral gray.
func (s *State) Color(states []annotation.LabelState) color.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range states {
		c, ok := s.set.Control(st.From)
		if !ok {
			continue
		}
		for _, v := range st.Values {
			if l, ok := c.Label(v); ok {
				return l.RGBA()
			}
		}
	}
	gray, _ := imaging.ParseColor("gray")
	return gray
}

// Hotkey describes a label bound to a key.
type Hotkey struct {
	Key     string
	Control string
	Value   string
}

// Hotkeys lists every label with a hotkey.
func (s *State) Hotkeys() []Hotkey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Hotkey
	for _, c := range s.set.Controls {
		for _, l := range c.Labels {
			if l.Hotkey != "" {
				out = append(out, Hotkey{Key: l.Hotkey, Control: c.Name, Value: l.Value})
			}
		}
	}
	return out
}

func (s *State) lookup(control, value string) (*Control, error) {
	c, ok := s.set.Control(control)
	if !ok {
		return nil, fmt.Errorf("control %q: %w", control, ErrUnknownLabel)
	}
	if _, ok := c.Label(value); !ok {
		return nil, fmt.Errorf("control %q value %q: %w", control, value, ErrUnknownLabel)
	}
	return c, nil
}
