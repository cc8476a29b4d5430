package epubdoc

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
)

// ErrNotEPUB is returned when the archive does not look like an EPUB
// publication.
var ErrNotEPUB = errors.New("epubdoc: not an EPUB archive")

const containerPath = "META-INF/container.xml"

// Reader provides access to the files and package document of an opened
// EPUB archive.
type Reader struct {
	files  map[string]*zip.File
	pkg    *Package
	closer io.Closer
}

// Open opens the EPUB at the given path and parses its container and
// package documents.
func Open(name string) (*Reader, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("epubdoc: opening %s: %w", name, err)
	}
	r, err := NewReader(&zr.Reader)
	if err != nil {
		zr.Close()
		return nil, err
	}
	r.closer = zr
	return r, nil
}

// NewReader builds a Reader over an already-opened zip archive. This is
// the entry point when the EPUB arrives as a byte slice or is embedded
// in another container.
func NewReader(zr *zip.Reader) (*Reader, error) {
	r := &Reader{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		r.files[path.Clean(f.Name)] = f
	}

	data, err := r.ReadFile(containerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", ErrNotEPUB, containerPath)
	}
	opfHref, err := opfPath(data)
	if err != nil {
		return nil, err
	}

	opfData, err := r.ReadFile(opfHref)
	if err != nil {
		return nil, fmt.Errorf("epubdoc: reading package document %s: %w", opfHref, err)
	}
	pkg, err := parseOPF(opfData, path.Dir(opfHref))
	if err != nil {
		return nil, err
	}
	r.pkg = pkg
	return r, nil
}

// Package returns the parsed package document.
func (r *Reader) Package() *Package {
	return r.pkg
}

// Spine returns the linear spine items in reading order. Non-linear
// items (covers marked linear="no", print-only pages) are excluded from
// chapter production.
func (r *Reader) Spine() []SpineItem {
	var out []SpineItem
	for _, it := range r.pkg.Spine {
		if it.Linear {
			out = append(out, it)
		}
	}
	return out
}

// ReadFile returns the contents of the archive member with the given
// path, relative to the archive root.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	f, ok := r.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("epubdoc: no such file in archive: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close releases the underlying archive, if this Reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
