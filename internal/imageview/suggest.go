package imageview

import (
	"fmt"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/detection"
)

// AddSuggestions stores detector output as suggestion regions on the
// current item, replacing the item's earlier suggestions. Suggestions carry
// no labels and stay out of the interactive layer until accepted.
func (v *View) AddSuggestions(ss []detection.Suggestion) ([]string, error) {
	if !v.ready {
		return nil, ErrNotReady
	}
	v.RejectSuggestions()
	ids := make([]string, 0, len(ss))
	for _, s := range ss {
		r, err := v.Annotation.Create(s.Geometry, nil,
			annotation.WithoutLabels(),
			annotation.WithOrigin(annotation.OriginSuggestion, s.Score),
			annotation.WithItem(v.current),
		)
		if err != nil {
			v.logger.Debug("suggestion skipped", "source", s.Source, "error", err)
			continue
		}
		ids = append(ids, r.ID)
	}
	v.logger.Info("suggestions added", "count", len(ids), "item", v.current)
	return ids, nil
}

// Suggestions lists the suggestion regions of the current item.
func (v *View) Suggestions() []*annotation.Region {
	var out []*annotation.Region
	for _, r := range v.Annotation.All() {
		if r.Origin == annotation.OriginSuggestion && r.Item == v.current {
			out = append(out, r)
		}
	}
	return out
}

// AcceptSuggestion turns a suggestion into a prediction region. It takes
// states, or the active labels when states is empty; a suggestion that
// would end up unlabelled is refused with ErrNoActiveLabel.
func (v *View) AcceptSuggestion(id string, states []annotation.LabelState) error {
	r := v.Annotation.Get(id)
	if r == nil {
		return fmt.Errorf("%w: %s", annotation.ErrUnknownRegion, id)
	}
	if r.Origin != annotation.OriginSuggestion {
		return fmt.Errorf("region %s is not a suggestion", id)
	}
	if len(states) == 0 {
		states = v.Labels.ActiveStates()
	}
	states = slices.DeleteFunc(slices.Clone(states), func(s annotation.LabelState) bool { return !s.Selectable() })
	if len(states) == 0 {
		return &annotation.NoActiveLabelError{Kind: r.Kind()}
	}

	snap := v.Annotation.Snapshot()
	err := v.Annotation.Update(id, func(r *annotation.Region) {
		r.Origin = annotation.OriginPrediction
		r.Labels = states
	})
	if err != nil {
		return err
	}
	v.Annotation.History.Push(snap)
	return nil
}

// RejectSuggestions removes every suggestion of the current item.
func (v *View) RejectSuggestions() int {
	n := 0
	for _, r := range v.Suggestions() {
		if v.Annotation.Remove(r.ID) {
			n++
		}
	}
	return n
}
