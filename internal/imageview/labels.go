package imageview

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/interaction"
	"github.com/ironsheep/image-annotator-mcp/internal/labels"
)

// SelectLabel toggles a label value. When regions are selected the
// control's new values are also written to them, the way pressing a label
// relabels the selection.
func (v *View) SelectLabel(control, value string) (bool, error) {
	on, err := v.Labels.Toggle(control, value)
	if err != nil {
		return false, err
	}
	if v.Selection.Len() > 0 {
		if err := v.RelabelSelection(control); err != nil {
			return on, err
		}
	}
	return on, nil
}

// RelabelSelection writes the current values of control onto every
// selected, editable region. A region whose only labels would be removed
// keeps them.
func (v *View) RelabelSelection(control string) error {
	if !v.Annotation.Editable() {
		return annotation.ErrNotEditable
	}
	set := v.Labels.Set()
	c, ok := set.Control(control)
	if !ok {
		return fmt.Errorf("control %q: %w", control, labels.ErrUnknownLabel)
	}
	values := v.Labels.Selected(control)

	snap := v.Annotation.Snapshot()
	changed := false
	for _, r := range v.Selection.Selected() {
		if !r.Editable() {
			continue
		}
		next := relabel(r.Labels, annotation.LabelState{From: c.Name, Type: c.Type, Values: values})
		if len(next) == 0 || slices.EqualFunc(next, r.Labels, sameState) {
			continue
		}
		if err := v.Annotation.Update(r.ID, func(r *annotation.Region) { r.Labels = next }); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		v.Annotation.History.Push(snap)
	}
	return nil
}

// relabel replaces or removes the state owned by st.From.
func relabel(states []annotation.LabelState, st annotation.LabelState) []annotation.LabelState {
	out := make([]annotation.LabelState, 0, len(states)+1)
	replaced := false
	for _, s := range states {
		if s.From != st.From {
			out = append(out, s)
			continue
		}
		replaced = true
		if st.Selectable() {
			out = append(out, st)
		}
	}
	if !replaced && st.Selectable() {
		out = append(out, st)
	}
	return out
}

func sameState(a, b annotation.LabelState) bool {
	return a.From == b.From && a.Type == b.Type && slices.Equal(a.Values, b.Values)
}

// bindLabelHotkeys registers one hotkey per label that declares one. Keys
// already taken by the canvas are skipped with a warning.
func (v *View) bindLabelHotkeys() {
	for _, hk := range v.Labels.Hotkeys() {
		err := v.Keymap.Register(hk.Key, fmt.Sprintf("Label %s: %s", hk.Control, hk.Value), func() {
			if _, err := v.SelectLabel(hk.Control, hk.Value); err != nil {
				v.logger.Debug("label hotkey failed", "key", hk.Key, "error", err)
			}
		})
		switch {
		case errors.Is(err, interaction.ErrHotkeyTaken):
			v.logger.Warn("label hotkey already bound", "key", hk.Key, "label", hk.Value)
			continue
		case err != nil:
			v.logger.Warn("invalid label hotkey", "key", hk.Key, "error", err)
			continue
		}
		v.labelHotkeys = append(v.labelHotkeys, hk.Key)
	}
}

func (v *View) unbindLabelHotkeys() {
	for _, k := range v.labelHotkeys {
		v.Keymap.Unregister(k)
	}
	v.labelHotkeys = nil
}

// ReplaceLabels swaps in a new label set and rebinds the label hotkeys.
func (v *View) ReplaceLabels(set *labels.Set) {
	v.unbindLabelHotkeys()
	v.Labels.Replace(set)
	v.bindLabelHotkeys()
	v.logger.Info("label set replaced", "controls", len(set.Controls))
}

// reloadLabels is the label file watcher callback; it runs on the loop.
func (v *View) reloadLabels(set *labels.Set) {
	if !v.Annotation.Alive() {
		return
	}
	v.ReplaceLabels(set)
}
