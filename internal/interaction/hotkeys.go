package interaction

import "fmt"

// Mount registers the canvas hotkeys. It is a no-op when already mounted.
func (d *Dispatcher) Mount() error {
	if d.mounted {
		return nil
	}
	d.mounted = true
	if d.keys == nil {
		return nil
	}
	for _, b := range []struct {
		combo, desc string
		fn          func()
	}{
		{"shift", "Pan image", func() {}},
		{"delete", "Delete selected regions", d.deleteSelected},
		{"backspace", "Delete selected regions", d.deleteSelected},
		{"escape", "Clear selection", d.escape},
		{"ctrl+z", "Undo", d.undo},
		{"ctrl+shift+z", "Redo", d.redo},
		{"ctrl+y", "Redo", d.redo},
	} {
		if err := d.keys.Register(b.combo, b.desc, b.fn); err != nil {
			d.unregisterHotkeys()
			d.mounted = false
			return fmt.Errorf("mount canvas hotkeys: %w", err)
		}
		d.hotkeys = append(d.hotkeys, b.combo)
	}
	return nil
}

// Unmount removes the hotkeys and tears down anything in flight: a pending
// deferred click, window listeners, the draft and relation mode.
func (d *Dispatcher) Unmount() {
	d.unregisterHotkeys()
	d.cancelDeferred()
	d.abortGesture()
	d.tools.Cancel()
	d.StopRelation()
	d.queue = nil
	d.mounted = false
}

// Mounted reports whether the hotkeys are registered.
func (d *Dispatcher) Mounted() bool { return d.mounted }

func (d *Dispatcher) unregisterHotkeys() {
	for _, c := range d.hotkeys {
		d.keys.Unregister(c)
	}
	d.hotkeys = nil
}

func (d *Dispatcher) deleteSelected() {
	if !d.ann.Editable() || d.sel.Len() == 0 {
		return
	}
	snap := d.ann.Snapshot()
	if d.sel.DeleteSelected() > 0 {
		d.ann.History.Push(snap)
	}
}

func (d *Dispatcher) escape() {
	switch {
	case d.relationFrom != "":
		d.StopRelation()
	case d.tools.Drawing():
		d.tools.Cancel()
	default:
		d.sel.Clear()
	}
}

func (d *Dispatcher) undo() {
	d.cancelDeferred()
	d.abortGesture()
	d.ann.History.Undo()
}

func (d *Dispatcher) redo() {
	d.cancelDeferred()
	d.abortGesture()
	d.ann.History.Redo()
}
