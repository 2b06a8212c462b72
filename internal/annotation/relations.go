package annotation

import (
	"fmt"
	"slices"
)

// Direction of a relation arrow.
type Direction string

const (
	DirectionRight Direction = "right"
	DirectionLeft  Direction = "left"
	DirectionBi    Direction = "bi"
)

// Relation links two regions by id.
type Relation struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Direction Direction `json:"direction"`
	Labels    []string  `json:"labels,omitempty"`
}

// AddRelation links from to to. Adding an existing link is a no-op.
func (s *Store) AddRelation(from, to string, dir Direction, labels ...string) error {
	if s.dead {
		return &StaleReferenceError{Op: "add relation"}
	}
	if from == to {
		return ErrSelfRelation
	}
	for _, id := range []string{from, to} {
		if s.index[id] == nil {
			return fmt.Errorf("%w: %s", ErrUnknownRegion, id)
		}
	}
	if s.relationIndex(from, to) >= 0 {
		return nil
	}
	if dir == "" {
		dir = DirectionRight
	}
	s.relations = append(s.relations, Relation{From: from, To: to, Direction: dir, Labels: slices.Clone(labels)})
	s.publish(Change{Kind: RelationAdded, ID: from, To: to})
	return nil
}

// RemoveRelation deletes the link from -> to. It reports whether one existed.
func (s *Store) RemoveRelation(from, to string) bool {
	if s.dead {
		return false
	}
	i := s.relationIndex(from, to)
	if i < 0 {
		return false
	}
	s.relations = slices.Delete(s.relations, i, i+1)
	s.publish(Change{Kind: RelationRemoved, ID: from, To: to})
	return true
}

// Relations returns a copy of every relation.
func (s *Store) Relations() []Relation {
	out := make([]Relation, len(s.relations))
	for i, r := range s.relations {
		r.Labels = slices.Clone(r.Labels)
		out[i] = r
	}
	return out
}

// RelationsOf returns the relations touching id.
func (s *Store) RelationsOf(id string) []Relation {
	var out []Relation
	for _, r := range s.relations {
		if r.From == id || r.To == id {
			r.Labels = slices.Clone(r.Labels)
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) relationIndex(from, to string) int {
	return slices.IndexFunc(s.relations, func(r Relation) bool { return r.From == from && r.To == to })
}
