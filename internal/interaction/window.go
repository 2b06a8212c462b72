package interaction

import (
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/input"
)

// WindowEvents is the window-level pointer listener registry. A gesture
// that starts on the canvas listens here so it still completes when the
// pointer leaves the canvas.
type WindowEvents interface {
	// Add installs fn for events of kind and returns a function that
	// removes it. Calling the remover more than once is harmless.
	Add(kind input.EventKind, fn func(input.PointerEvent)) (remove func())
	// Emit delivers ev to the listeners for its kind.
	Emit(ev input.PointerEvent)
}

// Window is an in-memory WindowEvents.
type Window struct {
	listeners []windowListener
	next      int
}

type windowListener struct {
	id   int
	kind input.EventKind
	fn   func(input.PointerEvent)
}

// NewWindow returns a registry with no listeners.
func NewWindow() *Window { return &Window{} }

func (w *Window) Add(kind input.EventKind, fn func(input.PointerEvent)) func() {
	w.next++
	id := w.next
	w.listeners = append(w.listeners, windowListener{id: id, kind: kind, fn: fn})
	return func() {
		w.listeners = slices.DeleteFunc(w.listeners, func(l windowListener) bool { return l.id == id })
	}
}

func (w *Window) Emit(ev input.PointerEvent) {
	for _, l := range slices.Clone(w.listeners) {
		if l.kind == ev.Kind {
			l.fn(ev)
		}
	}
}

// Count returns the number of installed listeners.
func (w *Window) Count() int { return len(w.listeners) }
