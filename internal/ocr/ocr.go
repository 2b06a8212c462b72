package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
	pix "github.com/ironsheep/image-annotator-mcp/internal/imaging"
)

// ErrUnavailable is returned when the binary was built without an OCR engine.
var ErrUnavailable = errors.New("ocr: engine not available in this build")

// Word is one recognized word.
type Word struct {
	Text string `json:"text"`
	// Confidence is 0-1.
	Confidence float64 `json:"confidence"`
	// Bounds is in source image pixels.
	Bounds geom.BBox `json:"bounds"`
}

// Result is the transcription of one region.
type Result struct {
	// Text is the recognized text with line breaks kept and surrounding
	// whitespace trimmed.
	Text string `json:"text"`
	// Confidence is the mean word confidence, 0 when nothing was read.
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words"`
}

// Engine recognizes text in a PNG encoded image. Word bounds are returned in
// the pixel space of that image.
type Engine interface {
	Recognize(ctx context.Context, png []byte, language string) (*Result, error)
}

// Options controls region preparation.
type Options struct {
	// Language is a Tesseract language code such as "eng".
	Language string
	// Pad grows the region on each side before cropping, in pixels.
	Pad int
	// MinHeight upscales crops shorter than this so small text is legible.
	MinHeight int
}

// DefaultOptions returns the transcription defaults.
func DefaultOptions() Options {
	return Options{Language: "eng", Pad: 4, MinHeight: 48}
}

// Transcriber reads the text inside annotation regions.
type Transcriber struct {
	engine Engine
	opts   Options
}

// NewTranscriber returns a Transcriber using engine. A nil engine uses the
// build's default engine.
func NewTranscriber(engine Engine, opts Options) *Transcriber {
	if engine == nil {
		engine = DefaultEngine()
	}
	def := DefaultOptions()
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.Pad < 0 {
		opts.Pad = 0
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = def.MinHeight
	}
	return &Transcriber{engine: engine, opts: opts}
}

// Transcribe recognizes the text inside box of img. Word bounds in the
// result are mapped back to img's pixel space.
func (t *Transcriber) Transcribe(ctx context.Context, img image.Image, box geom.BBox) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prepared, origin, scale, err := Prepare(img, box, t.opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	res, err := t.engine.Recognize(ctx, buf.Bytes(), t.opts.Language)
	if err != nil {
		return nil, err
	}
	return finish(res, origin, scale), nil
}

// Prepare crops box out of img and readies it for recognition: grayscale,
// stretched contrast and, for short crops, an upscale to opts.MinHeight.
// It returns the prepared image with the source pixel of its top-left corner
// and the scale applied.
func Prepare(img image.Image, box geom.BBox, opts Options) (image.Image, image.Point, float64, error) {
	rect := pix.PixelRect(box, opts.Pad, img.Bounds())
	if rect.Empty() {
		return nil, image.Point{}, 0, pix.ErrEmptyCrop
	}

	out := image.Image(imaging.Grayscale(imaging.Crop(img, rect)))
	out = imaging.AdjustContrast(out, 20)

	scale := 1.0
	if opts.MinHeight > 0 && rect.Dy() < opts.MinHeight {
		scale = float64(opts.MinHeight) / float64(rect.Dy())
		out = imaging.Resize(out, int(math.Round(float64(rect.Dx())*scale)), opts.MinHeight, imaging.Lanczos)
	}
	return out, rect.Min, scale, nil
}

// finish maps word bounds back to source pixels and fills the summary fields.
func finish(res *Result, origin image.Point, scale float64) *Result {
	out := &Result{Text: strings.TrimSpace(res.Text), Words: make([]Word, 0, len(res.Words))}
	var total float64
	for _, w := range res.Words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		b := w.Bounds
		w.Bounds = geom.BBox{
			Left:   float64(origin.X) + b.Left/scale,
			Top:    float64(origin.Y) + b.Top/scale,
			Right:  float64(origin.X) + b.Right/scale,
			Bottom: float64(origin.Y) + b.Bottom/scale,
		}
		total += w.Confidence
		out.Words = append(out.Words, w)
	}
	if len(out.Words) > 0 {
		out.Confidence = total / float64(len(out.Words))
	}
	return out
}
