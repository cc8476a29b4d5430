// Package format provides source format detection for the rittdoc pipeline.
package format

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format represents a supported source format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
	// EPUB indicates an EPUB publication.
	EPUB
)

// ErrUnknownFormat is returned when a source file's extension is not one of
// the accepted formats. Detection is strict: an unrecognized extension is a
// rejection, never a best-effort guess.
var ErrUnknownFormat = errors.New("format: unrecognized source format")

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case EPUB:
		return "EPUB"
	default:
		return "Unknown"
	}
}

// Detect determines the source format from the filename extension.
// It returns ErrUnknownFormat for anything other than .pdf or .epub.
func Detect(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return PDF, nil
	case ".epub":
		return EPUB, nil
	default:
		return Unknown, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}

// DetectFromMagic checks file magic bytes against the format implied by the
// extension. It is a confirmation step, not a fallback: a mismatch is
// reported to the caller as a warning, never silently reinterpreted.
func DetectFromMagic(data []byte) Format {
	if len(data) < 4 {
		return Unknown
	}

	// PDF magic: %PDF
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return PDF
	}

	// ZIP magic: PK\x03\x04. An EPUB is a ZIP whose first entry is an
	// uncompressed "mimetype" file containing application/epub+zip.
	if data[0] == 0x50 && data[1] == 0x4B && data[2] == 0x03 && data[3] == 0x04 {
		if isEPUBArchive(data) {
			return EPUB
		}
		return Unknown
	}

	return Unknown
}

// MatchesMagic reports whether the leading bytes of a file are plausible
// for the format. Unlike DetectFromMagic it needs only a short head (the
// ZIP central directory is not required), so callers can cross-check an
// extension without reading the whole file.
func MatchesMagic(f Format, head []byte) bool {
	if len(head) < 4 {
		return false
	}
	switch f {
	case PDF:
		return bytes.HasPrefix(head, []byte("%PDF"))
	case EPUB:
		return head[0] == 0x50 && head[1] == 0x4B && head[2] == 0x03 && head[3] == 0x04
	default:
		return false
	}
}

// isEPUBArchive checks whether ZIP data carries the EPUB mimetype entry.
func isEPUBArchive(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name != "mimetype" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return false
		}
		content, err := io.ReadAll(io.LimitReader(rc, 64))
		rc.Close()
		if err != nil {
			return false
		}
		return strings.TrimSpace(string(content)) == "application/epub+zip"
	}
	return false
}
