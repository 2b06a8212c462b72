// Package viewport maps between screen, canvas and natural image space and
// owns the zoom and pan state of an image canvas.
//
// The conversion functions are pure and cheap enough to call on every
// pointer event and render pass. Controller applies user requests: wheel
// zoom toward the cursor, drag and programmatic pan, and debounced stage
// resizes. Out-of-range requests are clamped and logged at debug level.
package viewport
