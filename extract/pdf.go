package extract

import (
	"fmt"
	"math"
	"os"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/tsawler/rittdoc/model"
)

// PDFProvider is a PageProvider backed by a PDF file.
type PDFProvider struct {
	file   *os.File
	reader *pdflib.Reader
}

// OpenPDF opens a PDF file for run extraction. The returned provider must
// be closed when done.
func OpenPDF(path string) (*PDFProvider, error) {
	f, r, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	return &PDFProvider{file: f, reader: r}, nil
}

// PageCount returns the number of pages.
func (p *PDFProvider) PageCount() int {
	return p.reader.NumPage()
}

// Close releases the underlying file handle.
func (p *PDFProvider) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// Page extracts the runs of page n (1-based). Positioned glyph strings from
// the content stream are coalesced into runs: consecutive texts that share a
// baseline, font and size merge into one run. An image-only page yields zero
// runs; that is not an error.
func (p *PDFProvider) Page(n int) ([]model.TextRun, float64, float64, error) {
	page := p.reader.Page(n)
	if page.V.IsNull() {
		return nil, 0, 0, fmt.Errorf("extract: page %d not found", n)
	}

	width, height := pageSize(page)

	content := page.Content()
	if len(content.Text) == 0 {
		return nil, width, height, nil
	}

	var runs []model.TextRun
	var cur *runAccumulator

	for _, t := range content.Text {
		if cur != nil && cur.accepts(t) {
			cur.add(t)
			continue
		}
		if cur != nil {
			runs = append(runs, cur.run(n))
		}
		cur = newRunAccumulator(t)
	}
	if cur != nil {
		runs = append(runs, cur.run(n))
	}

	return runs, width, height, nil
}

// runAccumulator builds one TextRun from consecutive positioned texts.
type runAccumulator struct {
	text     string
	font     string
	fontSize float64
	x, y     float64
	endX     float64
}

func newRunAccumulator(t pdflib.Text) *runAccumulator {
	return &runAccumulator{
		text:     t.S,
		font:     t.Font,
		fontSize: t.FontSize,
		x:        t.X,
		y:        t.Y,
		endX:     t.X + t.W,
	}
}

// accepts reports whether a glyph string continues the current run: same
// baseline (within half a point), same font and size, advancing rightward
// without a large horizontal jump.
func (a *runAccumulator) accepts(t pdflib.Text) bool {
	if t.Font != a.font || t.FontSize != a.fontSize {
		return false
	}
	if math.Abs(t.Y-a.y) > 0.5 {
		return false
	}
	// A jump of more than two em-widths means a new column or tab stop.
	if t.X < a.endX-0.5 || t.X > a.endX+a.fontSize*2 {
		return false
	}
	return true
}

func (a *runAccumulator) add(t pdflib.Text) {
	// Insert a space when the glyph string starts past the current pen
	// position by more than a thin-space width.
	if t.X > a.endX+a.fontSize*0.2 && len(a.text) > 0 {
		a.text += " "
	}
	a.text += t.S
	if t.X+t.W > a.endX {
		a.endX = t.X + t.W
	}
}

func (a *runAccumulator) run(page int) model.TextRun {
	bbox := model.NewBBox(a.x, a.y, a.endX-a.x, a.fontSize)
	return model.NewTextRun(a.text, bbox, page, a.fontSize, a.font)
}

// pageSize reads the page MediaBox, walking up to the page tree root when
// the attribute is inherited. US Letter is assumed when absent entirely.
func pageSize(page pdflib.Page) (float64, float64) {
	v := page.V
	for !v.IsNull() {
		mb := v.Key("MediaBox")
		if !mb.IsNull() && mb.Len() == 4 {
			w := mb.Index(2).Float64() - mb.Index(0).Float64()
			h := mb.Index(3).Float64() - mb.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return 612, 792
}
