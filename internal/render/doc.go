// Package render draws a read-only snapshot of an annotation: the image with
// every visible region outlined and filled in its label color.
//
// Snapshots are what an MCP client sees of the canvas. They never feed back
// into the engine.
package render
