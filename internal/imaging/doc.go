// Package imaging loads, crops and decorates the raster images that regions
// are drawn over.
//
// All coordinates are natural image pixels with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward. Region bounds arrive as
// floating point boxes and are rounded outward to whole pixels before any
// pixel operation.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use; decoding runs on loader goroutines
// while the engine reads from the same cache. The remaining functions are
// stateless and never modify their input image.
//
// # Formats
//
// PNG, JPEG and GIF decoders come from the standard library; BMP, TIFF and
// WebP are registered from golang.org/x/image. Crops and overlays are always
// encoded as PNG.
//
// # Colors
//
// Label colors are parsed with ParseColor ("#RRGGBB", "#RRGGBBAA", "#RGB" or
// a common CSS name). Labels without a configured color get AutoColor(i).
package imaging
