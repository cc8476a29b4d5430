package extract

import (
	"testing"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/tsawler/rittdoc/model"
)

// fakeText builds a positioned glyph string for accumulator tests.
func fakeText(s string, x, y, w, size float64, font string) pdflib.Text {
	return pdflib.Text{S: s, X: x, Y: y, W: w, FontSize: size, Font: font}
}

func TestMemoryProvider(t *testing.T) {
	p := &MemoryProvider{
		Pages: []PageContent{
			{
				Width:  612,
				Height: 792,
				Runs: []model.TextRun{
					model.NewTextRun("hello", model.NewBBox(72, 700, 50, 12), 1, 12, "Times"),
				},
			},
			{Width: 612, Height: 792},
		},
	}

	if p.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", p.PageCount())
	}

	runs, w, h, err := p.Page(1)
	if err != nil {
		t.Fatal(err)
	}
	if w != 612 || h != 792 {
		t.Errorf("page size = %fx%f", w, h)
	}
	if len(runs) != 1 || runs[0].Text != "hello" {
		t.Errorf("unexpected runs: %v", runs)
	}

	// An empty page is valid and yields zero runs.
	runs, _, _, err = p.Page(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("empty page yielded %d runs", len(runs))
	}

	if _, _, _, err := p.Page(3); err == nil {
		t.Error("out-of-range page should error")
	}
}

func TestOpenPDF_MissingFile(t *testing.T) {
	if _, err := OpenPDF("/nonexistent/file.pdf"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRunAccumulator_Coalescing(t *testing.T) {
	// Simulated glyph strings on one baseline.
	a := newRunAccumulator(fakeText("Hel", 72, 700, 20, 12, "F1"))
	if !a.accepts(fakeText("lo", 92, 700, 14, 12, "F1")) {
		t.Fatal("contiguous text on same baseline should be accepted")
	}
	a.add(fakeText("lo", 92, 700, 14, 12, "F1"))

	// Word gap: slightly past the pen position.
	wordGap := fakeText("world", 110, 700, 30, 12, "F1")
	if !a.accepts(wordGap) {
		t.Fatal("word-gap text should still be accepted")
	}
	a.add(wordGap)

	run := a.run(1)
	if run.Text != "Hello world" {
		t.Errorf("coalesced text = %q, want %q", run.Text, "Hello world")
	}
	if run.BBox.Left() != 72 || run.BBox.Right() != 140 {
		t.Errorf("unexpected bbox: %+v", run.BBox)
	}

	// Different baseline breaks the run.
	if a.accepts(fakeText("next line", 72, 686, 40, 12, "F1")) {
		t.Error("different baseline must not be accepted")
	}

	// Font change breaks the run.
	if a.accepts(fakeText("bold", 140, 700, 20, 12, "F2")) {
		t.Error("font change must not be accepted")
	}

	// Large horizontal jump breaks the run (new column).
	if a.accepts(fakeText("far right", 400, 700, 40, 12, "F1")) {
		t.Error("large horizontal jump must not be accepted")
	}
}
