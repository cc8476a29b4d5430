// Package extract defines the boundary to the layout/content extractor
// collaborator. The pipeline consumes page text runs through the
// PageProvider interface; a PDF-backed implementation and an in-memory
// implementation for tests are provided.
package extract

import (
	"errors"

	"github.com/tsawler/rittdoc/model"
)

// ErrUnreadableSource is returned when a source file cannot be opened or
// parsed at all. Extraction failure is fatal: the job aborts before any
// structuring occurs.
var ErrUnreadableSource = errors.New("extract: source unreadable")

// PageProvider supplies per-page text runs with geometry and typography.
type PageProvider interface {
	// PageCount returns the number of pages in the source.
	PageCount() int

	// Page returns the runs of the 1-based page n along with the page's
	// width and height in points. A page with no text yields zero runs
	// and no error.
	Page(n int) (runs []model.TextRun, width, height float64, err error)

	// Close releases underlying resources.
	Close() error
}

// MemoryProvider is a PageProvider over pre-built runs, used by tests and
// by callers that perform their own extraction.
type MemoryProvider struct {
	Pages []PageContent
}

// PageContent is one page of a MemoryProvider.
type PageContent struct {
	Width  float64
	Height float64
	Runs   []model.TextRun
}

// PageCount returns the number of pages.
func (m *MemoryProvider) PageCount() int {
	return len(m.Pages)
}

// Page returns the runs for page n (1-based).
func (m *MemoryProvider) Page(n int) ([]model.TextRun, float64, float64, error) {
	if n < 1 || n > len(m.Pages) {
		return nil, 0, 0, errors.New("extract: page out of range")
	}
	p := m.Pages[n-1]
	return p.Runs, p.Width, p.Height, nil
}

// Close implements PageProvider.
func (m *MemoryProvider) Close() error {
	return nil
}
