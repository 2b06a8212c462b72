package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

type staticLabels struct {
	active []LabelState
}

func (l staticLabels) AvailableStates() []LabelState { return l.active }
func (l staticLabels) ActiveStates() []LabelState    { return l.active }

var carLabel = LabelState{From: "label", Type: "rectanglelabels", Values: []string{"Car"}}

func newLabelledStore() *Store {
	return NewStore(staticLabels{active: []LabelState{carLabel}}, nil)
}

func box(x, y, w, h float64) Box { return Box{X: x, Y: y, Width: w, Height: h} }

func TestCreateUsesActiveLabels(t *testing.T) {
	s := newLabelledStore()
	r, err := s.Create(box(10, 10, 40, 40), nil)
	require.NoError(t, err)
	assert.Len(t, r.ID, idLength)
	assert.Equal(t, []string{"Car"}, r.LabelValues())
	assert.Equal(t, OriginManual, r.Origin)
	assert.Same(t, r, s.Get(r.ID))
}

func TestCreateWithoutSelectableLabelFails(t *testing.T) {
	s := NewStore(staticLabels{active: []LabelState{{From: "label", Type: "rectanglelabels"}}}, nil)
	_, err := s.Create(box(0, 0, 5, 5), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoActiveLabel)
	var nal *NoActiveLabelError
	require.ErrorAs(t, err, &nal)
	assert.Equal(t, KindBox, nal.Kind)
	assert.Zero(t, s.Len())

	_, err = NewStore(nil, nil).Create(box(0, 0, 5, 5), nil)
	assert.ErrorIs(t, err, ErrNoActiveLabel)

	r, err := s.Create(box(0, 0, 5, 5), nil, WithoutLabels(), WithOrigin(OriginSuggestion, 0.7))
	require.NoError(t, err)
	assert.Empty(t, r.Labels)
}

func TestCreateValidatesGeometryAndParent(t *testing.T) {
	s := newLabelledStore()
	_, err := s.Create(Polygon{Points: []geom.Point{geom.Pt(0, 0), geom.Pt(1, 1)}, Closed: true}, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = s.Create(box(0, 0, 5, 5), nil, WithParent("missing"))
	assert.ErrorIs(t, err, ErrUnknownParent)

	parent, err := s.Create(box(0, 0, 5, 5), nil, WithID("parent"))
	require.NoError(t, err)
	_, err = s.Create(box(0, 0, 5, 5), nil, WithID("parent"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	child, err := s.Create(box(1, 1, 2, 2), nil, WithParent(parent.ID))
	require.NoError(t, err)
	assert.Equal(t, "parent", child.ParentID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	before := s.All()

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	assert.False(t, s.Remove("does-not-exist"))
	assert.Equal(t, before, s.All())
	assert.Empty(t, changes)

	assert.True(t, s.Remove(a.ID))
	assert.False(t, s.Remove(a.ID))
	assert.Zero(t, s.Len())
}

func TestRemoveCascades(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	b, _ := s.Create(box(10, 0, 5, 5), nil, WithParent(a.ID))
	c, _ := s.Create(box(20, 0, 5, 5), nil)
	require.NoError(t, s.AddRelation(a.ID, b.ID, DirectionRight))
	require.NoError(t, s.AddRelation(c.ID, a.ID, DirectionBi, "near"))
	require.NoError(t, s.AddRelation(b.ID, c.ID, ""))
	s.SetSelected([]string{a.ID, c.ID}, true)

	s.Remove(a.ID)

	assert.Equal(t, []Relation{{From: b.ID, To: c.ID, Direction: DirectionRight}}, s.Relations())
	assert.Empty(t, s.Get(b.ID).ParentID)
	assert.Equal(t, []string{c.ID}, s.SelectedIDs())
}

func TestSelectableExcludesLockedHiddenAndOtherViews(t *testing.T) {
	s := newLabelledStore()
	visible, _ := s.Create(box(0, 0, 5, 5), nil)
	s.Create(box(0, 0, 5, 5), nil, WithLocked())
	hidden, _ := s.Create(box(0, 0, 5, 5), nil)
	require.NoError(t, s.Update(hidden.ID, func(r *Region) { r.Hidden = true }))
	sug, _ := s.Create(box(0, 0, 5, 5), nil, WithOrigin(OriginSuggestion, 0.5))
	other, _ := s.Create(box(0, 0, 5, 5), nil, WithItem(1))

	assert.Equal(t, []*Region{visible}, s.Selectable(View{}))
	assert.Equal(t, []*Region{sug}, s.Selectable(View{Suggestions: true}))
	assert.Equal(t, []*Region{other}, s.Selectable(View{Item: 1}))
}

func TestRegionAtPrefersTopmost(t *testing.T) {
	s := newLabelledStore()
	s.Create(box(0, 0, 100, 100), nil)
	top, _ := s.Create(box(40, 40, 20, 20), nil)
	s.Create(box(45, 45, 5, 5), nil, WithLocked())

	assert.Same(t, top, s.RegionAt(geom.Pt(47, 47), View{}, 0))
	assert.Nil(t, s.RegionAt(geom.Pt(200, 200), View{}, 0))
}

func TestUpsertMergesLabels(t *testing.T) {
	s := newLabelledStore()
	span := TextSpan{Start: 3, End: 9, Text: "London"}
	r, created, err := s.Upsert(span, LabelState{From: "ner", Type: "labels", Values: []string{"LOC"}})
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.Upsert(span, LabelState{From: "ner", Type: "labels", Values: []string{"GPE", "LOC"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, r, again)
	assert.Equal(t, []string{"LOC", "GPE"}, r.LabelValues())
	assert.Equal(t, 1, s.Len())
}

func TestNotificationsAfterMutationCompletes(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	b, _ := s.Create(box(10, 0, 5, 5), nil)
	require.NoError(t, s.AddRelation(a.ID, b.ID, ""))

	var seen []string
	// Deleting from inside a selection reaction must not expose a
	// half-removed region to later observers.
	s.Subscribe(func(c Change) {
		if c.Kind == SelectionChanged && len(s.SelectedIDs()) == 1 {
			s.Remove(s.SelectedIDs()[0])
		}
	})
	s.Subscribe(func(c Change) {
		if c.Kind == RegionRemoved {
			assert.Nil(t, s.Get(c.ID))
			assert.Empty(t, s.RelationsOf(c.ID))
			assert.NotContains(t, s.SelectedIDs(), c.ID)
		}
		seen = append(seen, c.Kind.String())
	})

	s.SetSelected([]string{a.ID}, true)
	assert.Equal(t, []string{"selection_changed", "relation_removed", "selection_changed", "region_removed"}, seen)
	// The nested remove is applied before the outer call returns.
	assert.Nil(t, s.Get(a.ID))
	assert.NotNil(t, s.Get(b.ID))
	assert.Empty(t, s.Relations())
}

func TestDestroyedStoreIsInert(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	s.Destroy()

	_, err := s.Create(box(0, 0, 5, 5), nil)
	assert.ErrorIs(t, err, ErrStaleReference)
	assert.ErrorIs(t, s.SetGeometry(a.ID, box(1, 1, 1, 1)), ErrStaleReference)
	assert.False(t, s.Remove(a.ID))
	assert.False(t, s.SetSelected([]string{a.ID}, true))
	assert.NotPanics(t, func() { s.Translate([]string{a.ID}, 1, 1) })
	assert.Zero(t, s.Len())
}

func TestSetGeometryRules(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	locked, _ := s.Create(box(0, 0, 5, 5), nil, WithLocked())

	assert.ErrorIs(t, s.SetGeometry(a.ID, Ellipse{X: 1, Y: 1, RadiusX: 1, RadiusY: 1}), ErrInvalidGeometry)
	assert.ErrorIs(t, s.SetGeometry(locked.ID, box(1, 1, 1, 1)), ErrLocked)
	assert.ErrorIs(t, s.SetGeometry("nope", box(1, 1, 1, 1)), ErrUnknownRegion)
	require.NoError(t, s.SetGeometry(a.ID, box(2, 2, 3, 3)))
	assert.Equal(t, box(2, 2, 3, 3), s.Get(a.ID).Geometry)
}

func TestLockedRegionsCannotBeSelected(t *testing.T) {
	s := newLabelledStore()
	a, _ := s.Create(box(0, 0, 5, 5), nil)
	s.SetSelected([]string{a.ID}, true)
	require.NoError(t, s.Update(a.ID, func(r *Region) { r.Locked = true }))
	assert.Empty(t, s.SelectedIDs())
	assert.False(t, s.SetSelected([]string{a.ID}, true))
}

func TestHistoryUndoRedo(t *testing.T) {
	a := New(staticLabels{active: []LabelState{carLabel}}, nil)
	a.History.Checkpoint()
	r, err := a.Create(box(0, 0, 5, 5), nil)
	require.NoError(t, err)
	a.History.Checkpoint()
	a.Translate([]string{r.ID}, 10, 0)

	require.True(t, a.History.Undo())
	assert.Equal(t, box(0, 0, 5, 5), a.Get(r.ID).Geometry)
	require.True(t, a.History.Undo())
	assert.Zero(t, a.Len())
	assert.False(t, a.History.Undo())

	require.True(t, a.History.Redo())
	require.True(t, a.History.Redo())
	assert.Equal(t, box(10, 0, 5, 5), a.Get(r.ID).Geometry)
	assert.False(t, a.History.CanRedo())
}
