//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/image-annotator-mcp/internal/geom"
)

// Tesseract recognizes text with the system Tesseract library.
type Tesseract struct{}

// DefaultEngine returns the Tesseract engine.
func DefaultEngine() Engine { return Tesseract{} }

// Recognize implements Engine. Each call uses its own client, so calls may
// run concurrently.
func (Tesseract) Recognize(ctx context.Context, png []byte, language string) (*Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page mode: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	res := &Result{Text: text}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without word boxes is still useful.
		return res, nil
	}
	for _, box := range boxes {
		res.Words = append(res.Words, Word{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Bounds: geom.BBox{
				Left:   float64(box.Box.Min.X),
				Top:    float64(box.Box.Min.Y),
				Right:  float64(box.Box.Max.X),
				Bottom: float64(box.Box.Max.Y),
			},
		})
	}
	return res, nil
}

// Version returns the linked Tesseract version.
func Version() (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version(), nil
}
