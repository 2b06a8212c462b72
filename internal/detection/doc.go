// Package detection finds candidate annotation regions in an image.
//
// Three detectors share one edge map:
//
//   - Rectangles: contour analysis over connected edge pixels
//   - Circles: a Hough circle transform
//   - Text blocks: sliding windows scored by edge density and the share of
//     horizontal edge runs
//
// Suggest runs them concurrently and converts the results into annotation
// geometries (boxes and ellipses) with a score, ready to be added to a store
// as suggestion regions.
//
// # Edge Map
//
// The image is converted to grayscale and each pixel is compared with its
// right and lower neighbours. Differences above 30 gray levels are edges.
// Filled shapes therefore produce a one pixel boundary band and outlined
// shapes a two pixel band, which the rectangle score accounts for.
//
// # Coordinates
//
// Results use image pixel coordinates with the origin at the top-left of the
// image bounds. Suggest downscales large images before detecting and maps the
// results back to the source resolution.
//
// # Limitations
//
// The detectors suit clean, high-contrast content such as diagrams, forms
// and screenshots. Photographs and noisy scans produce poor suggestions.
package detection
