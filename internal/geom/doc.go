// Package geom holds the small amount of plane geometry the annotation
// engine needs: points (gonum r2 vectors), axis-aligned boxes, rect fitting
// against a stage, and polygon and segment hit tests.
package geom
