package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultCacheSize is the number of decoded images kept when NewImageCache
// is given a non-positive size.
const DefaultCacheSize = 16

// ImageCache keeps recently decoded images keyed by file path, so switching
// back to a gallery item or re-cropping regions does not hit the disk.
//
// The cache holds at most a fixed number of images and evicts the least
// recently used one when full. It is safe for concurrent use; image loads
// run off the event loop while the engine reads from the same cache.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(8)
//	img, err := cache.Load("/path/to/scan.png")
//	if err != nil {
//	    return err
//	}
//	cache.Evict("/path/to/scan.png") // Optional: free memory
type ImageCache struct {
	images *lru.Cache[string, image.Image]
}

// NewImageCache creates an empty cache holding up to size images.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	images, err := lru.New[string, image.Image](size)
	if err != nil {
		// Only reachable with a non-positive size, excluded above.
		panic(err)
	}
	return &ImageCache{images: images}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: File path to the image. PNG, JPEG, GIF, BMP, TIFF and WebP are
//     supported.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached under the exact path string provided. Different
// spellings of the same file get separate entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.images.Get(path); ok {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.images.Add(path, img)
	return img, nil
}

// Put stores an already decoded image under key.
func (c *ImageCache) Put(key string, img image.Image) { c.images.Add(key, img) }

// Clear removes all images from the cache.
func (c *ImageCache) Clear() { c.images.Purge() }

// Evict removes a specific image from the cache by its path. Unknown paths
// are ignored.
func (c *ImageCache) Evict(path string) { c.images.Remove(path) }

// Len returns the number of cached images.
func (c *ImageCache) Len() int { return c.images.Len() }

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Path is the file the image was loaded from.
	Path string `json:"path"`

	// Width is the natural image width in pixels.
	Width int `json:"width"`

	// Height is the natural image height in pixels.
	Height int `json:"height"`

	// Format is the format guessed from the file extension: "png", "jpeg",
	// "gif", "bmp", "tiff", "webp" or "unknown".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`

	// FileSize is FileSizeBytes in human-readable form, e.g. "1.2 MB".
	FileSize string `json:"file_size"`
}

// LoadImageInfo loads an image through cache and describes it.
//
// Parameters:
//   - cache: The image cache to use for loading. Must not be nil.
//   - path: Path to the image file.
//
// Returns:
//   - *ImageInfo: Metadata about the image.
//   - error: Non-nil if the image cannot be loaded or the file cannot be stat'd.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := Describe(img)
	info.Path = path
	info.Format = formatFromExt(path)
	info.FileSizeBytes = stat.Size()
	info.FileSize = humanize.Bytes(uint64(stat.Size()))
	return info, nil
}

// Describe reports the size, depth and alpha of an in-memory image.
func Describe(img image.Image) *ImageInfo {
	hasAlpha := false
	colorDepth := "8-bit"
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.Alpha:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16, *image.Alpha16:
		colorDepth = "16-bit"
	}
	b := img.Bounds()
	return &ImageInfo{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     "unknown",
		ColorDepth: colorDepth,
		HasAlpha:   hasAlpha,
	}
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	case ".webp":
		return "webp"
	}
	return "unknown"
}
