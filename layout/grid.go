package layout

import (
	"sort"

	"github.com/tsawler/rittdoc/model"
)

// GridConfig holds configuration for reading-order reconstruction.
type GridConfig struct {
	// Columns is the number of grid columns the page is partitioned into.
	// Default: 4
	Columns int

	// Rows is the number of grid rows the page is partitioned into.
	// Default: 8
	Rows int
}

// DefaultGridConfig returns sensible default configuration.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Columns: 4,
		Rows:    8,
	}
}

// ReadingOrderer orders the text runs of one page into a single linear
// sequence reflecting intended reading order, which is not necessarily the
// order runs were placed in the content stream.
//
// The page is partitioned into a coarse grid. Each run is assigned to the
// cell containing its top-left corner (runs spanning multiple cells included).
// Cells are visited top-to-bottom, then left-to-right within a row band;
// runs within a cell are ordered by vertical position, tie-broken by
// horizontal position.
type ReadingOrderer struct {
	config GridConfig
}

// NewReadingOrderer creates a reading orderer with default configuration.
func NewReadingOrderer() *ReadingOrderer {
	return &ReadingOrderer{config: DefaultGridConfig()}
}

// NewReadingOrdererWithConfig creates a reading orderer with custom configuration.
func NewReadingOrdererWithConfig(config GridConfig) *ReadingOrderer {
	return &ReadingOrderer{config: config}
}

// gridRef identifies one occupied grid cell.
type gridRef struct {
	row, col int
}

// Order returns the page's runs in reading order. A page with zero runs
// yields an empty ordering, not an error.
//
// Coordinates follow the PDF convention: Y increases upward, so the top of
// the page has the largest Y values.
func (o *ReadingOrderer) Order(runs []model.TextRun, pageWidth, pageHeight float64) []model.TextRun {
	if len(runs) == 0 {
		return nil
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		// Degenerate page geometry: fall back to a plain top-down sweep.
		out := make([]model.TextRun, len(runs))
		copy(out, runs)
		sortRunsTopDown(out)
		return out
	}

	cols := o.config.Columns
	rows := o.config.Rows
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cellW := pageWidth / float64(cols)
	cellH := pageHeight / float64(rows)

	cells := make(map[gridRef][]model.TextRun)
	for _, r := range runs {
		ref := o.cellFor(r, cellW, cellH, cols, rows)
		cells[ref] = append(cells[ref], r)
	}

	// Visit occupied cells: row bands top-to-bottom, columns left-to-right.
	refs := make([]gridRef, 0, len(cells))
	for ref := range cells {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].row != refs[j].row {
			return refs[i].row < refs[j].row
		}
		return refs[i].col < refs[j].col
	})

	out := make([]model.TextRun, 0, len(runs))
	for _, ref := range refs {
		cell := cells[ref]
		sortRunsTopDown(cell)
		out = append(out, cell...)
	}
	return out
}

// cellFor assigns a run to the grid cell containing its top-left corner.
// Row 0 is the top band of the page.
func (o *ReadingOrderer) cellFor(r model.TextRun, cellW, cellH float64, cols, rows int) gridRef {
	col := int(r.BBox.Left() / cellW)
	if col >= cols {
		col = cols - 1
	}
	if col < 0 {
		col = 0
	}

	// Top of the page has the largest Y; invert so row 0 is the top band.
	row := rows - 1 - int(r.BBox.Top()/cellH)
	if row >= rows {
		row = rows - 1
	}
	if row < 0 {
		row = 0
	}
	return gridRef{row: row, col: col}
}

// sortRunsTopDown orders runs by descending top edge (top of page first),
// tie-broken by ascending left edge.
func sortRunsTopDown(runs []model.TextRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		ti, tj := runs[i].BBox.Top(), runs[j].BBox.Top()
		if ti != tj {
			return ti > tj
		}
		return runs[i].BBox.Left() < runs[j].BBox.Left()
	})
}
