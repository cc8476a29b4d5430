//go:build ocr

// Package ocr recovers text from image-only pages via the Tesseract
// engine. Pages that produce no text runs during extraction can be fed
// through a Client using rasterized page images supplied alongside the
// source document.
//
// This implementation wraps Tesseract via gosseract and requires the
// engine to be installed. On macOS:
//
//	brew install tesseract
//
// On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
package ocr

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Client wraps a Tesseract session.
type Client struct {
	client *gosseract.Client
}

// New creates an OCR client. Close must be called to release the engine.
func New() (*Client, error) {
	return &Client{client: gosseract.NewClient()}, nil
}

// Close releases OCR resources.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Recognize runs OCR over encoded image data (PNG, TIFF, JPEG) and
// returns the recognized text with surrounding whitespace trimmed.
func (c *Client) Recognize(imageData []byte) (string, error) {
	if err := c.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("ocr: setting image: %w", err)
	}
	text, err := c.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognition failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// SetLanguage sets the recognition language(s). Multiple languages join
// with "+" (e.g. "eng+deu"). The engine default is "eng".
func (c *Client) SetLanguage(lang string) error {
	return c.client.SetLanguage(lang)
}
