package interaction

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// ErrHotkeyTaken is returned when registering a combo that is already bound.
var ErrHotkeyTaken = errors.New("hotkey already registered")

// Hotkeys is the hotkey registry the dispatcher binds its keys in.
type Hotkeys interface {
	Register(combo, description string, fn func()) error
	Unregister(combo string)
	// Handle runs the binding for ev and reports whether there was one.
	Handle(ev input.KeyEvent) bool
}

// Binding is one registered hotkey.
type Binding struct {
	Combo       string `json:"combo"`
	Description string `json:"description"`
	fn          func()
}

// Keymap is an in-memory Hotkeys.
type Keymap struct {
	bindings map[string]Binding
}

// NewKeymap returns an empty keymap.
func NewKeymap() *Keymap { return &Keymap{bindings: make(map[string]Binding)} }

// Register binds combo, such as "ctrl+z" or "shift". Modifier order in
// combo does not matter.
func (k *Keymap) Register(combo, description string, fn func()) error {
	c, err := normalizeCombo(combo)
	if err != nil {
		return err
	}
	if _, ok := k.bindings[c]; ok {
		return fmt.Errorf("%w: %s", ErrHotkeyTaken, c)
	}
	k.bindings[c] = Binding{Combo: c, Description: description, fn: fn}
	return nil
}

// Unregister removes combo. Unknown combos are ignored.
func (k *Keymap) Unregister(combo string) {
	if c, err := normalizeCombo(combo); err == nil {
		delete(k.bindings, c)
	}
}

func (k *Keymap) Handle(ev input.KeyEvent) bool {
	b, ok := k.bindings[ev.Combo()]
	if !ok || b.fn == nil {
		return false
	}
	b.fn()
	return true
}

// Bindings lists the registered hotkeys sorted by combo.
func (k *Keymap) Bindings() []Binding {
	out := make([]Binding, 0, len(k.bindings))
	for _, b := range k.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Combo < out[j].Combo })
	return out
}

// Len returns the number of bindings.
func (k *Keymap) Len() int { return len(k.bindings) }

// normalizeCombo rewrites a combo into the form KeyEvent.Combo produces.
// A combo made only of one modifier, like "shift", names the modifier key
// itself.
func normalizeCombo(combo string) (string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("empty hotkey %q", combo)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	mods, err := input.ParseModifiers(strings.Join(parts[:len(parts)-1], "+"))
	if err != nil {
		return "", err
	}
	return input.KeyEvent{Key: parts[len(parts)-1], Mods: mods}.Combo(), nil
}
