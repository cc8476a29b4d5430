//go:build !ocr

// Package ocr recovers text from image-only pages via the Tesseract
// engine.
//
// This is the stub compiled when the "ocr" build tag is not set; every
// operation returns ErrOCRNotEnabled. Rebuild with -tags ocr (and a
// system Tesseract installation) to enable recognition.
package ocr

import "errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("ocr: support not enabled; rebuild with -tags ocr")

// Client is the stub client.
type Client struct{}

// New returns ErrOCRNotEnabled.
func New() (*Client, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op. Safe on a nil client.
func (c *Client) Close() error {
	return nil
}

// Recognize returns ErrOCRNotEnabled.
func (c *Client) Recognize(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// SetLanguage returns ErrOCRNotEnabled.
func (c *Client) SetLanguage(lang string) error {
	return ErrOCRNotEnabled
}
