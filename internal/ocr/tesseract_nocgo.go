//go:build !cgo

package ocr

import "context"

// Tesseract is unavailable without cgo; Recognize always fails.
type Tesseract struct{}

// DefaultEngine returns the Tesseract engine.
func DefaultEngine() Engine { return Tesseract{} }

// Recognize implements Engine.
func (Tesseract) Recognize(context.Context, []byte, string) (*Result, error) {
	return nil, ErrUnavailable
}

// Version reports that no engine is linked.
func Version() (string, error) { return "", ErrUnavailable }
