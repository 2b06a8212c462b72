package annotation

import "log/slog"

// Annotation is one annotation session over an object: its region store,
// which also indexes relations, and the undo history.
type Annotation struct {
	*Store
	History *History
}

// New returns an empty annotation using labels as its label source.
func New(labels LabelSource, logger *slog.Logger) *Annotation {
	s := NewStore(labels, logger)
	return &Annotation{Store: s, History: NewHistory(s, 100)}
}

// Destroy tears down the store and forgets the history.
func (a *Annotation) Destroy() {
	a.History.Reset()
	a.Store.Destroy()
}
