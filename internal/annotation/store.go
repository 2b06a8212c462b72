package annotation

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// ChangeKind classifies store notifications.
type ChangeKind int

const (
	RegionAdded ChangeKind = iota
	RegionUpdated
	RegionRemoved
	SelectionChanged
	RelationAdded
	RelationRemoved
	StoreReset
)

func (k ChangeKind) String() string {
	switch k {
	case RegionAdded:
		return "region_added"
	case RegionUpdated:
		return "region_updated"
	case RegionRemoved:
		return "region_removed"
	case SelectionChanged:
		return "selection_changed"
	case RelationAdded:
		return "relation_added"
	case RelationRemoved:
		return "relation_removed"
	case StoreReset:
		return "store_reset"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one completed mutation.
type Change struct {
	Kind ChangeKind
	// ID is the region concerned; for relations it is the source region.
	ID string
	// To is the relation target, when Kind is a relation change.
	To string
}

// View scopes which regions are interactive.
type View struct {
	// Item is the gallery index being shown.
	Item int
	// Suggestions selects the suggestion layer instead of accepted regions.
	Suggestions bool
}

func (v View) includes(r *Region) bool {
	if r.Item != v.Item {
		return false
	}
	return (r.Origin == OriginSuggestion) == v.Suggestions
}

// Store owns the regions of one annotation, the selection flags on them and
// the relations between them.
//
// Every mutation completes before any observer is told about it. Observers
// may mutate the store from inside a notification; the resulting changes are
// queued and delivered after the current notification round.
type Store struct {
	logger *slog.Logger
	labels LabelSource

	regions   []*Region
	index     map[string]*Region
	selected  []string
	relations []Relation

	editable bool
	dead     bool

	observers []observer
	nextObs   int
	pending   []Change
	notifying bool
}

type observer struct {
	id int
	fn func(Change)
}

// NewStore returns an empty, editable store. labels may be nil, in which
// case every Create must pass explicit label states.
func NewStore(labels LabelSource, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		logger:   logger,
		labels:   labels,
		index:    make(map[string]*Region),
		editable: true,
	}
}

// SetLabels replaces the label source consulted by Create.
func (s *Store) SetLabels(src LabelSource) { s.labels = src }

// Labels returns the current label source.
func (s *Store) Labels() LabelSource { return s.labels }

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.observers = slices.DeleteFunc(s.observers, func(o observer) bool { return o.id == id })
	}
}

func (s *Store) publish(changes ...Change) {
	s.pending = append(s.pending, changes...)
	if s.notifying {
		return
	}
	s.notifying = true
	defer func() { s.notifying = false }()
	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		for _, o := range slices.Clone(s.observers) {
			o.fn(c)
		}
	}
}

// Alive reports whether the store has not been destroyed.
func (s *Store) Alive() bool { return !s.dead }

// Destroy tears the store down. Afterwards reads return nothing, mutations
// return a *StaleReferenceError or do nothing, and observers are dropped.
func (s *Store) Destroy() {
	s.dead = true
	s.regions = nil
	s.index = map[string]*Region{}
	s.selected = nil
	s.relations = nil
	s.observers = nil
	s.pending = nil
}

// Editable reports whether user edits are accepted.
func (s *Store) Editable() bool { return s.editable && !s.dead }

// SetEditable toggles read-only mode.
func (s *Store) SetEditable(v bool) { s.editable = v }

// CreateOption customizes Create.
type CreateOption func(*createOptions)

type createOptions struct {
	id         string
	parent     string
	origin     Origin
	score      float64
	item       int
	locked     bool
	readOnly   bool
	hidden     bool
	text       string
	unlabelled bool
}

// WithID imports a region under a known id.
func WithID(id string) CreateOption { return func(o *createOptions) { o.id = id } }

// WithParent links the new region to an existing parent.
func WithParent(id string) CreateOption { return func(o *createOptions) { o.parent = id } }

// WithOrigin records where the region came from and its score.
func WithOrigin(origin Origin, score float64) CreateOption {
	return func(o *createOptions) { o.origin, o.score = origin, score }
}

// WithItem assigns the region to a gallery image.
func WithItem(item int) CreateOption { return func(o *createOptions) { o.item = item } }

// WithLocked creates a locked region.
func WithLocked() CreateOption { return func(o *createOptions) { o.locked = true } }

// WithReadOnly creates a read-only region.
func WithReadOnly() CreateOption { return func(o *createOptions) { o.readOnly = true } }

// WithHidden creates a hidden region.
func WithHidden() CreateOption { return func(o *createOptions) { o.hidden = true } }

// WithText attaches a transcription.
func WithText(text string) CreateOption { return func(o *createOptions) { o.text = text } }

// WithoutLabels allows a region with no label state and keeps the label
// source's active states off it. Suggestions use this; they are labelled
// when accepted.
func WithoutLabels() CreateOption { return func(o *createOptions) { o.unlabelled = true } }

// Create adds a region. When states is empty the label source's active
// states are used. Only selectable states are kept, and if none remain the
// call fails with a *NoActiveLabelError.
func (s *Store) Create(g Geometry, states []LabelState, opts ...CreateOption) (*Region, error) {
	if s.dead {
		return nil, &StaleReferenceError{Op: "create region"}
	}
	var o createOptions
	o.origin = OriginManual
	for _, opt := range opts {
		opt(&o)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: nil geometry", ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	if len(states) == 0 && s.labels != nil && !o.unlabelled {
		states = s.labels.ActiveStates()
	}
	var usable []LabelState
	for _, st := range states {
		if st.Selectable() {
			usable = append(usable, st)
		}
	}
	if len(usable) == 0 && !o.unlabelled {
		return nil, &NoActiveLabelError{Kind: g.Kind()}
	}

	if o.parent != "" {
		if _, ok := s.index[o.parent]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, o.parent)
		}
	}
	id := o.id
	if id == "" {
		id = newID(func(c string) bool { _, ok := s.index[c]; return ok })
	} else if _, ok := s.index[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	r := &Region{
		ID:       id,
		ParentID: o.parent,
		Geometry: g.Clone(),
		Labels:   cloneStates(usable),
		Locked:   o.locked,
		ReadOnly: o.readOnly,
		Hidden:   o.hidden,
		Origin:   o.origin,
		Score:    o.score,
		Item:     o.item,
		Text:     o.text,
	}
	s.regions = append(s.regions, r)
	s.index[id] = r
	s.logger.Debug("region created", "id", id, "kind", g.Kind(), "labels", r.LabelValues())
	s.publish(Change{Kind: RegionAdded, ID: id})
	return r, nil
}

// Upsert assigns state to the region with the same geometry, or creates a
// new region when there is none. This is how a second label lands on an
// existing span instead of duplicating it.
func (s *Store) Upsert(g Geometry, state LabelState, opts ...CreateOption) (r *Region, created bool, err error) {
	if s.dead {
		return nil, false, &StaleReferenceError{Op: "upsert region"}
	}
	if !state.Selectable() {
		return nil, false, &NoActiveLabelError{Kind: g.Kind()}
	}
	existing := s.Find(func(r *Region) bool { return SameGeometry(r.Geometry, g) })
	if existing == nil {
		r, err = s.Create(g, []LabelState{state}, opts...)
		return r, err == nil, err
	}
	if !existing.Editable() {
		return nil, false, fmt.Errorf("%w: %s", ErrLocked, existing.ID)
	}
	existing.Labels = mergeState(existing.Labels, state)
	s.publish(Change{Kind: RegionUpdated, ID: existing.ID})
	return existing, false, nil
}

// Get returns the region with id, or nil.
func (s *Store) Get(id string) *Region { return s.index[id] }

// All returns every region in z-order, bottom first.
func (s *Store) All() []*Region { return slices.Clone(s.regions) }

// Len returns the number of regions.
func (s *Store) Len() int { return len(s.regions) }

// Find returns the first region, bottom first, that matches pred.
func (s *Store) Find(pred func(*Region) bool) *Region {
	for _, r := range s.regions {
		if pred(r) {
			return r
		}
	}
	return nil
}

// Selectable returns the regions the user can interact with in view:
// visible, unlocked, and belonging to the view's layer and gallery item.
func (s *Store) Selectable(view View) []*Region {
	var out []*Region
	for _, r := range s.regions {
		if r.Locked || r.Hidden || !view.includes(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RegionAt returns the topmost selectable region under p, or nil.
func (s *Store) RegionAt(p geom.Point, view View, tol float64) *Region {
	sel := s.Selectable(view)
	for i := len(sel) - 1; i >= 0; i-- {
		r := sel[i]
		if r.Kind().Spatial() && r.Geometry.Contains(p, tol) {
			return r
		}
	}
	return nil
}

// Update applies fn to the region with id and notifies observers. fn may
// change labels, flags, text and origin; geometry goes through SetGeometry.
func (s *Store) Update(id string, fn func(*Region)) error {
	if s.dead {
		return &StaleReferenceError{Op: "update region"}
	}
	r := s.index[id]
	if r == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	g := r.Geometry
	fn(r)
	r.Geometry = g
	r.ID = id
	if r.Locked && r.selected {
		s.selected = slices.DeleteFunc(s.selected, func(x string) bool { return x == id })
		r.selected = false
		s.publish(Change{Kind: RegionUpdated, ID: id}, Change{Kind: SelectionChanged})
		return nil
	}
	s.publish(Change{Kind: RegionUpdated, ID: id})
	return nil
}

// SetGeometry replaces a region's geometry. The new geometry must be valid
// and of the same kind.
func (s *Store) SetGeometry(id string, g Geometry) error {
	if s.dead {
		return &StaleReferenceError{Op: "set geometry"}
	}
	r := s.index[id]
	if r == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	if !r.Editable() {
		return fmt.Errorf("%w: %s", ErrLocked, id)
	}
	if g == nil || g.Kind() != r.Kind() {
		return fmt.Errorf("%w: cannot change %s region into another kind", ErrInvalidGeometry, r.Kind())
	}
	if err := g.Validate(); err != nil {
		return err
	}
	r.Geometry = g.Clone()
	s.publish(Change{Kind: RegionUpdated, ID: id})
	return nil
}

// Translate moves every listed editable region by (dx, dy) as one change
// round. Unknown and non-editable ids are skipped.
func (s *Store) Translate(ids []string, dx, dy float64) {
	if s.dead || (dx == 0 && dy == 0) {
		return
	}
	var changes []Change
	for _, id := range ids {
		r := s.index[id]
		if r == nil || !r.Editable() {
			continue
		}
		r.Geometry = r.Geometry.Translate(dx, dy)
		changes = append(changes, Change{Kind: RegionUpdated, ID: id})
	}
	s.publish(changes...)
}

// Remove deletes a region, the relations that reference it, its selection
// flag and the parent links of its children. Removing an unknown id does
// nothing. It reports whether a region was removed.
func (s *Store) Remove(id string) bool {
	if s.dead {
		return false
	}
	r := s.index[id]
	if r == nil {
		return false
	}
	delete(s.index, id)
	s.regions = slices.DeleteFunc(s.regions, func(x *Region) bool { return x == r })

	var changes []Change
	kept := s.relations[:0]
	for _, rel := range s.relations {
		if rel.From == id || rel.To == id {
			changes = append(changes, Change{Kind: RelationRemoved, ID: rel.From, To: rel.To})
			continue
		}
		kept = append(kept, rel)
	}
	s.relations = kept
	for _, child := range s.regions {
		if child.ParentID == id {
			child.ParentID = ""
			changes = append(changes, Change{Kind: RegionUpdated, ID: child.ID})
		}
	}
	if r.selected {
		r.selected = false
		s.selected = slices.DeleteFunc(s.selected, func(x string) bool { return x == id })
		changes = append(changes, Change{Kind: SelectionChanged})
	}
	changes = append(changes, Change{Kind: RegionRemoved, ID: id})
	s.logger.Debug("region removed", "id", id)
	s.publish(changes...)
	return true
}

// Clear removes every region and relation.
func (s *Store) Clear() {
	if s.dead {
		return
	}
	s.regions = nil
	s.index = make(map[string]*Region)
	s.selected = nil
	s.relations = nil
	s.publish(Change{Kind: StoreReset})
}

// SetSelected adds or removes id from the selection. Locked regions cannot
// be selected. It reports whether the selection changed.
func (s *Store) SetSelected(ids []string, on bool) bool {
	if s.dead {
		return false
	}
	changed := false
	for _, id := range ids {
		r := s.index[id]
		if r == nil || r.selected == on || (on && r.Locked) {
			continue
		}
		r.selected = on
		if on {
			s.selected = append(s.selected, id)
		} else {
			s.selected = slices.DeleteFunc(s.selected, func(x string) bool { return x == id })
		}
		changed = true
	}
	if changed {
		s.publish(Change{Kind: SelectionChanged})
	}
	return changed
}

// ClearSelection deselects everything. It reports whether anything was
// selected.
func (s *Store) ClearSelection() bool {
	if s.dead || len(s.selected) == 0 {
		return false
	}
	for _, id := range s.selected {
		if r := s.index[id]; r != nil {
			r.selected = false
		}
	}
	s.selected = nil
	s.publish(Change{Kind: SelectionChanged})
	return true
}

// ReplaceSelection makes ids the whole selection in one change round.
// Unknown and locked ids are dropped. It reports whether the selection
// changed.
func (s *Store) ReplaceSelection(ids []string) bool {
	if s.dead {
		return false
	}
	var next []string
	for _, id := range ids {
		r := s.index[id]
		if r == nil || r.Locked || slices.Contains(next, id) {
			continue
		}
		next = append(next, id)
	}
	if slices.Equal(next, s.selected) {
		return false
	}
	for _, id := range s.selected {
		if r := s.index[id]; r != nil {
			r.selected = false
		}
	}
	for _, id := range next {
		s.index[id].selected = true
	}
	s.selected = next
	s.publish(Change{Kind: SelectionChanged})
	return true
}

// SelectedIDs returns the selection in the order regions were selected.
func (s *Store) SelectedIDs() []string { return slices.Clone(s.selected) }

// Selected returns the selected regions in selection order.
func (s *Store) Selected() []*Region {
	out := make([]*Region, 0, len(s.selected))
	for _, id := range s.selected {
		out = append(out, s.index[id])
	}
	return out
}
