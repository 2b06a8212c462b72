// Package input defines the device-independent pointer and keyboard events
// the annotation engine consumes.
package input

import (
	"fmt"
	"strings"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

const (
	Shift Modifiers = 1 << iota
	Ctrl
	Alt
	Meta
)

// Has reports whether every modifier in m2 is held.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

// ZoomIntent reports whether the wheel should zoom rather than scroll.
func (m Modifiers) ZoomIntent() bool { return m&(Ctrl|Meta) != 0 }

// SkipInteractions reports whether pointer-down should ignore regions under
// the cursor so a new region can be drawn on top of them.
func (m Modifiers) SkipInteractions() bool { return m&(Ctrl|Meta) != 0 }

func (m Modifiers) String() string {
	var parts []string
	for _, n := range []struct {
		bit  Modifiers
		name string
	}{{Shift, "shift"}, {Ctrl, "ctrl"}, {Alt, "alt"}, {Meta, "meta"}} {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "+")
}

// ParseModifiers parses a list like "shift,ctrl" or "ctrl+alt".
// "cmd" is accepted as an alias for meta.
func ParseModifiers(s string) (Modifiers, error) {
	var m Modifiers
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || r == '+' || r == ' '
	}) {
		switch f {
		case "shift":
			m |= Shift
		case "ctrl", "control":
			m |= Ctrl
		case "alt", "option":
			m |= Alt
		case "meta", "cmd", "command":
			m |= Meta
		default:
			return 0, fmt.Errorf("unknown modifier %q", f)
		}
	}
	return m, nil
}

// Buttons is the set of pressed pointer buttons, using the DOM bit layout.
type Buttons uint8

const (
	ButtonPrimary   Buttons = 1
	ButtonSecondary Buttons = 2
	ButtonMiddle    Buttons = 4
)

// EventKind distinguishes pointer events.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	DoubleClick
)

func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "pointerdown"
	case PointerMove:
		return "pointermove"
	case PointerUp:
		return "pointerup"
	case DoubleClick:
		return "dblclick"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// PointerEvent is a pointer event in screen coordinates.
type PointerEvent struct {
	Kind    EventKind
	Screen  geom.Point
	Buttons Buttons
	Mods    Modifiers
	// Outside is set when the pointer is outside the canvas element, so the
	// event is only visible to window-level listeners.
	Outside bool
}

// KeyEvent is a key press. Key uses lowercase names such as "escape",
// "enter", "backspace", "delete" or a single character.
type KeyEvent struct {
	Key  string
	Mods Modifiers
}

// Combo returns the key with its modifiers, e.g. "ctrl+z".
func (k KeyEvent) Combo() string {
	if k.Mods == 0 {
		return k.Key
	}
	return k.Mods.String() + "+" + k.Key
}
