// Package ocr transcribes the text inside annotation regions.
//
// A Transcriber crops the region out of the source image, converts it to
// grayscale, stretches its contrast and upscales short crops before handing
// a PNG to an Engine. Word bounds come back in source image pixels.
//
// # Engines
//
// Builds with cgo link the system Tesseract library through gosseract and
// need its language data installed (for example tesseract-ocr-eng on
// Debian). Builds without cgo get an engine that returns ErrUnavailable, so
// the rest of the server keeps working without OCR.
//
// Language codes are Tesseract's: "eng", "deu", "fra", "chi_sim" and so on.
package ocr
