// Package imageview assembles one image object: the loaded image or
// gallery, its annotation and the controllers that edit it.
//
// A View owns a single event loop. Pointer input, timers, label reloads and
// image decode completions are all delivered onto that loop, so the
// controllers never see concurrent access. Callers outside the loop use Do,
// or the context-taking methods that do the pixel work on the caller's
// goroutine and only touch view state through Do.
package imageview
