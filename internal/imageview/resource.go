package imageview

import (
	"context"
	"errors"
	"fmt"
	"image"

	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
	"github.com/ironsheep/image-annotator-mcp/internal/loop"
)

var (
	// ErrNoImages is returned by Load without paths.
	ErrNoImages = errors.New("no image paths given")
	// ErrItemRange is returned for a gallery index outside the item list.
	ErrItemRange = errors.New("gallery index out of range")
	// ErrSuperseded is returned to a waiter whose load was replaced by a
	// newer one before it finished.
	ErrSuperseded = errors.New("image load superseded")
	// ErrNotReady is returned by operations that need a loaded image.
	ErrNotReady = errors.New("image not loaded")
)

// ResourceLoadError is an image that failed to load. It is kept on the
// view's error list; the rest of the view keeps working.
type ResourceLoadError struct {
	Path string
	Item int
	Err  error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("failed to load image %d (%s): %v", e.Item, e.Path, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// Load replaces the gallery with paths, clears the annotation and loads the
// first image. It waits for the load to finish; a failure is returned and
// also kept in Errors.
func (v *View) Load(ctx context.Context, paths ...string) error {
	var done <-chan error
	err := v.Do(ctx, func() error {
		if len(paths) == 0 {
			return ErrNoImages
		}
		v.Dispatcher.Unmount()
		if err := v.Dispatcher.Mount(); err != nil {
			return err
		}
		v.Annotation.Clear()
		v.Annotation.History.Reset()
		v.items = append([]string(nil), paths...)
		v.current = 0
		v.errs = nil
		v.suggestions = false
		done = v.fetch(0)
		return nil
	})
	if err != nil {
		return err
	}
	return wait(ctx, done)
}

// SetCurrentImage switches the gallery to item i and waits for it to load.
// Drafts, gestures and the selection belong to the previous item and are
// dropped.
func (v *View) SetCurrentImage(ctx context.Context, i int) error {
	var done <-chan error
	err := v.Do(ctx, func() error {
		if i < 0 || i >= len(v.items) {
			return fmt.Errorf("%w: %d of %d", ErrItemRange, i, len(v.items))
		}
		if i == v.current && v.ready {
			return nil
		}
		v.Dispatcher.Unmount()
		if err := v.Dispatcher.Mount(); err != nil {
			return err
		}
		v.Selection.Clear()
		v.current = i
		done = v.fetch(i)
		return nil
	})
	if err != nil || done == nil {
		return err
	}
	return wait(ctx, done)
}

func wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch decodes item i off the loop and delivers the result back onto it.
// Only the newest fetch may change the view.
func (v *View) fetch(i int) <-chan error {
	v.loadGen++
	gen := v.loadGen
	v.ready = false
	path := v.items[i]
	done := make(chan error, 1)

	go func() {
		img, err := v.images.Load(path)
		var info *pix.ImageInfo
		if err == nil {
			info, err = pix.LoadImageInfo(v.images, path)
		}
		posted := v.loop.Post(func() {
			if gen != v.loadGen {
				done <- ErrSuperseded
				return
			}
			if err != nil {
				lerr := &ResourceLoadError{Path: path, Item: i, Err: err}
				v.OnError(lerr)
				done <- lerr
				return
			}
			v.OnLoad(img, info)
			done <- nil
		})
		if !posted {
			done <- loop.ErrClosed
		}
	}()
	return done
}

// OnLoad installs a decoded image as the current one, flips the ready flag
// and lays the stage out once. A nil info is derived from the image.
func (v *View) OnLoad(img image.Image, info *pix.ImageInfo) {
	if info == nil {
		info = pix.Describe(img)
	}
	v.img, v.info, v.ready = img, info, true

	b := img.Bounds()
	v.Viewport.SetNaturalSize(float64(b.Dx()), float64(b.Dy()))
	v.logger.Info("image loaded", "path", info.Path, "item", v.current,
		"width", b.Dx(), "height", b.Dy(), "size", info.FileSize)
}

// OnError records a failed load. The previous image is not shown for the
// failed item.
func (v *View) OnError(err error) {
	v.errs = append(v.errs, err)
	v.img, v.info, v.ready = nil, nil, false
	v.logger.Warn("image load failed", "error", err)
}
