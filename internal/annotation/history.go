package annotation

// Snapshot is a deep copy of a store's regions and relations.
type Snapshot struct {
	regions   []*Region
	relations []Relation
}

// Snapshot captures the current regions and relations. Selection is not
// part of a snapshot.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{relations: s.Relations()}
	for _, r := range s.regions {
		c := r.Clone()
		c.selected = false
		snap.regions = append(snap.regions, c)
	}
	return snap
}

// Restore replaces the store contents with snap and clears the selection.
func (s *Store) Restore(snap Snapshot) {
	if s.dead {
		return
	}
	s.regions = nil
	s.index = make(map[string]*Region, len(snap.regions))
	for _, r := range snap.regions {
		c := r.Clone()
		s.regions = append(s.regions, c)
		s.index[c.ID] = c
	}
	s.relations = nil
	for _, rel := range snap.relations {
		rel.Labels = append([]string(nil), rel.Labels...)
		s.relations = append(s.relations, rel)
	}
	s.selected = nil
	s.publish(Change{Kind: StoreReset})
}

// History is a bounded undo/redo stack of store snapshots.
type History struct {
	store  *Store
	limit  int
	past   []Snapshot
	future []Snapshot
}

// NewHistory tracks store, keeping at most limit undo steps.
func NewHistory(store *Store, limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{store: store, limit: limit}
}

// Checkpoint records the current state as an undo step and drops the redo
// stack. Call it before a user-visible mutation.
func (h *History) Checkpoint() { h.Push(h.store.Snapshot()) }

// Push records snap, taken earlier, as an undo step. Gestures use it when
// whether anything changed is only known once they end.
func (h *History) Push(snap Snapshot) {
	h.past = append(h.past, snap)
	if len(h.past) > h.limit {
		h.past = h.past[len(h.past)-h.limit:]
	}
	h.future = nil
}

// Undo restores the last checkpoint. It reports whether there was one.
func (h *History) Undo() bool {
	if len(h.past) == 0 || !h.store.Alive() {
		return false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, h.store.Snapshot())
	h.store.Restore(prev)
	return true
}

// Redo reapplies the last undone step.
func (h *History) Redo() bool {
	if len(h.future) == 0 || !h.store.Alive() {
		return false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, h.store.Snapshot())
	h.store.Restore(next)
	return true
}

// CanUndo reports whether Undo would do anything.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether Redo would do anything.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Reset drops all recorded steps.
func (h *History) Reset() {
	h.past = nil
	h.future = nil
}
