package annotation

import (
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Origin records where a region came from.
type Origin string

const (
	OriginManual     Origin = "manual"
	OriginPrediction Origin = "prediction"
	OriginSuggestion Origin = "suggestion"
	OriginDynamic    Origin = "dynamic"
)

// LabelState is the value one labeling control assigns to a region.
type LabelState struct {
	// From is the name of the control that owns the labels.
	From string `json:"from_name"`
	// Type is the control type, e.g. "rectanglelabels".
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

// Selectable reports whether the state carries at least one label value.
func (s LabelState) Selectable() bool { return len(s.Values) > 0 }

// LabelSource supplies the label states a new region is committed with.
type LabelSource interface {
	// AvailableStates lists every control that could label a region.
	AvailableStates() []LabelState
	// ActiveStates lists the controls with a current label selection.
	ActiveStates() []LabelState
}

// Region is one annotated entity. Regions returned by a Store are owned by
// it; change them only through Store methods.
type Region struct {
	ID       string
	ParentID string
	Geometry Geometry
	Labels   []LabelState
	Locked   bool
	ReadOnly bool
	Hidden   bool
	Origin   Origin
	Score    float64
	// Item is the gallery index of the image the region belongs to.
	Item int
	// Text holds a transcription attached to the region.
	Text string

	selected bool
}

// Selected reports whether the region is in the current selection.
func (r *Region) Selected() bool { return r.selected }

// Kind returns the geometry kind.
func (r *Region) Kind() Kind { return r.Geometry.Kind() }

// Bounds returns the geometry bounds in image pixels.
func (r *Region) Bounds() geom.BBox { return r.Geometry.Bounds() }

// SupportsTransform reports whether the region can take part in handle
// based move and resize.
func (r *Region) SupportsTransform() bool { return r.Geometry.Kind().SupportsTransform() }

// Editable reports whether the region accepts geometry or label changes.
func (r *Region) Editable() bool { return !r.Locked && !r.ReadOnly }

// LabelValues returns every label value across all states, in order.
func (r *Region) LabelValues() []string {
	var out []string
	for _, s := range r.Labels {
		out = append(out, s.Values...)
	}
	return out
}

// HasLabel reports whether any state assigns value.
func (r *Region) HasLabel(value string) bool {
	return slices.Contains(r.LabelValues(), value)
}

// Clone returns a deep copy of r.
func (r *Region) Clone() *Region {
	c := *r
	c.Geometry = r.Geometry.Clone()
	c.Labels = cloneStates(r.Labels)
	return &c
}

func cloneStates(states []LabelState) []LabelState {
	out := make([]LabelState, len(states))
	for i, s := range states {
		out[i] = LabelState{From: s.From, Type: s.Type, Values: slices.Clone(s.Values)}
	}
	return out
}

// mergeState adds the values of s to the matching state in states, or
// appends s when no state comes from the same control.
func mergeState(states []LabelState, s LabelState) []LabelState {
	for i := range states {
		if states[i].From != s.From {
			continue
		}
		for _, v := range s.Values {
			if !slices.Contains(states[i].Values, v) {
				states[i].Values = append(states[i].Values, v)
			}
		}
		return states
	}
	return append(states, LabelState{From: s.From, Type: s.Type, Values: slices.Clone(s.Values)})
}
