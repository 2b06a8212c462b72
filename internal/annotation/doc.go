// Package annotation is the in-memory region model: the geometry variants a
// region can take, the Store that owns the regions of one annotation along
// with their selection flags and relations, and a snapshot based undo
// history.
//
// # Geometry
//
// Geometry is a closed set of value types (Box, Polygon, Ellipse, KeyPoint,
// Brush, TextSpan, AudioSpan) identified by Kind. Transforms return new
// values, so a region's shape only changes when the store swaps it.
//
// # Labels
//
// A region is created with the label states of a LabelSource. A commit with
// no selected label fails with *NoActiveLabelError and nothing is stored.
//
// # Notifications
//
// Observers registered with Store.Subscribe see each mutation only after it
// has fully completed. Mutations made from inside an observer are delivered
// in a later round, in order.
package annotation
