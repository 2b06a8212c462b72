package annotation

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveLabel is matched by every *NoActiveLabelError.
	ErrNoActiveLabel = errors.New("no active label")
	// ErrStaleReference is matched by every *StaleReferenceError.
	ErrStaleReference = errors.New("stale reference")

	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrUnknownRegion   = errors.New("unknown region")
	ErrUnknownParent   = errors.New("unknown parent region")
	ErrDuplicateID     = errors.New("duplicate region id")
	ErrLocked          = errors.New("region is locked")
	ErrSelfRelation    = errors.New("region cannot relate to itself")
	ErrNotEditable     = errors.New("annotation is read-only")
)

// NoActiveLabelError is returned when a region is committed while no label
// state has a selected value. The draft is discarded and no region is made.
type NoActiveLabelError struct {
	Kind Kind
}

func (e *NoActiveLabelError) Error() string {
	return fmt.Sprintf("cannot create %s region: no label selected", e.Kind)
}

func (e *NoActiveLabelError) Is(target error) bool { return target == ErrNoActiveLabel }

// StaleReferenceError is returned by operations on a destroyed store.
type StaleReferenceError struct {
	Op string
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("%s: annotation has been destroyed", e.Op)
}

func (e *StaleReferenceError) Is(target error) bool { return target == ErrStaleReference }
