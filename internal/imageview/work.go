package imageview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/image-annotator-mcp/internal/annotation"
	"github.com/ironsheep/image-annotator-mcp/internal/detection"
	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
	"github.com/ironsheep/image-annotator-mcp/internal/ocr"
	"github.com/ironsheep/image-annotator-mcp/internal/render"
	"github.com/ironsheep/image-annotator-mcp/internal/result"
)

// The methods in this file are called from outside the loop. Pixel work
// runs on the caller's goroutine; only reads and writes of view state go
// through Do.

// ErrNotSpatial is returned for pixel operations on a region without an
// image area.
var ErrNotSpatial = errors.New("region has no image area")

// regionBox returns the current image and the bounds of region id.
func (v *View) regionBox(id string) (image.Image, geom.BBox, error) {
	if !v.ready {
		return nil, geom.BBox{}, ErrNotReady
	}
	r := v.Annotation.Get(id)
	if r == nil {
		return nil, geom.BBox{}, fmt.Errorf("%w: %s", annotation.ErrUnknownRegion, id)
	}
	if !r.Kind().Spatial() {
		return nil, geom.BBox{}, fmt.Errorf("%w: %s is a %s", ErrNotSpatial, id, r.Kind())
	}
	return v.img, r.Bounds(), nil
}

// CropRegion returns region id cut out of the current image as a PNG.
func (v *View) CropRegion(ctx context.Context, id string, pad int, scale float64) (*pix.CropResult, error) {
	var img image.Image
	var box geom.BBox
	err := v.Do(ctx, func() (err error) {
		img, box, err = v.regionBox(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pix.Crop(img, box, pad, scale)
}

// Transcribe recognizes the text inside region id and stores it on the
// region. The text is kept only if the region still exists when
// recognition finishes.
func (v *View) Transcribe(ctx context.Context, tr *ocr.Transcriber, id string) (*ocr.Result, error) {
	var img image.Image
	var box geom.BBox
	err := v.Do(ctx, func() (err error) {
		img, box, err = v.regionBox(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	res, err := tr.Transcribe(ctx, img, box)
	if err != nil {
		return nil, err
	}

	err = v.Do(ctx, func() error {
		r := v.Annotation.Get(id)
		if r == nil {
			return fmt.Errorf("%w: %s", annotation.ErrUnknownRegion, id)
		}
		if !r.Editable() {
			return fmt.Errorf("%w: %s", annotation.ErrLocked, id)
		}
		if r.Text == res.Text {
			return nil
		}
		snap := v.Annotation.Snapshot()
		if err := v.Annotation.Update(id, func(r *annotation.Region) { r.Text = res.Text }); err != nil {
			return err
		}
		v.Annotation.History.Push(snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	v.logger.Info("region transcribed", "id", id, "chars", len(res.Text), "confidence", res.Confidence)
	return res, nil
}

// Suggest runs the region detectors over the current image and stores the
// result as the current item's suggestions. Detection that outlives an
// image switch is discarded with ErrSuperseded.
func (v *View) Suggest(ctx context.Context, opts detection.Options) ([]string, error) {
	var img image.Image
	var gen uint64
	err := v.Do(ctx, func() error {
		if !v.ready {
			return ErrNotReady
		}
		img, gen = v.img, v.loadGen
		return nil
	})
	if err != nil {
		return nil, err
	}

	found, err := detection.Suggest(ctx, img, opts)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = v.Do(ctx, func() (err error) {
		if gen != v.loadGen {
			return ErrSuperseded
		}
		ids, err = v.AddSuggestions(found)
		return err
	})
	return ids, err
}

func (v *View) resultOptions() result.Options {
	opts := result.Options{Gallery: len(v.items) > 1}
	if v.info != nil {
		opts.Width, opts.Height = float64(v.info.Width), float64(v.info.Height)
	} else if vp := v.Viewport.Viewport(); vp.NaturalWidth > 0 {
		opts.Width, opts.Height = vp.NaturalWidth, vp.NaturalHeight
	}
	return opts
}

// Export serializes the annotation as a JSON result array.
func (v *View) Export(ctx context.Context) ([]byte, error) {
	var data []byte
	err := v.Do(ctx, func() (err error) {
		data, err = result.Marshal(v.Annotation.Store, v.resultOptions())
		return err
	})
	return data, err
}

// Import replaces the annotation with a JSON result array. The replacement
// is one undo step; a malformed document leaves the annotation unchanged.
func (v *View) Import(ctx context.Context, data []byte) (int, error) {
	items, err := result.Unmarshal(data)
	if err != nil {
		return 0, err
	}
	n := 0
	err = v.Do(ctx, func() error {
		if !v.Annotation.Editable() {
			return annotation.ErrNotEditable
		}
		opts := v.resultOptions()
		if opts.Width == 0 {
			return ErrNotReady
		}
		snap := v.Annotation.Snapshot()
		v.Selection.Clear()
		if err := result.Import(v.Annotation.Store, items, opts); err != nil {
			return err
		}
		v.Annotation.History.Push(snap)
		n = v.Annotation.Len()
		return nil
	})
	return n, err
}

// Snapshot draws the current item's regions over the image.
func (v *View) Snapshot(ctx context.Context, opts render.Options) (*image.RGBA, error) {
	var (
		img     image.Image
		regions []*annotation.Region
		colors  = map[string]color.Color{}
	)
	err := v.Do(ctx, func() error {
		if !v.ready {
			return ErrNotReady
		}
		img = v.img
		for _, r := range v.Annotation.All() {
			if r.Item != v.current {
				continue
			}
			regions = append(regions, r.Clone())
			colors[r.ID] = v.Labels.Color(r.Labels)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	palette := func(r *annotation.Region) color.Color { return colors[r.ID] }
	return render.Snapshot(img, regions, palette, opts), nil
}
