package layout

import (
	"testing"

	"github.com/tsawler/rittdoc/model"
)

func TestFlowBuilder_MergesCloseLines(t *testing.T) {
	b := NewFlowBuilder()
	page := PageRuns{
		Page: 1, Width: 612, Height: 792,
		Runs: []model.TextRun{
			makeRun("First line", 72, 700, 200, 12, 1, 12),
			makeRun("second line", 72, 686, 200, 12, 1, 12),
			makeRun("third line.", 72, 672, 200, 12, 1, 12),
		},
	}

	paras := b.Build([]PageRuns{page})
	if len(paras) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(paras))
	}
	if got := paras[0].Text(); got != "First line second line third line." {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestFlowBuilder_BreaksOnLargeGap(t *testing.T) {
	b := NewFlowBuilder()
	// Line height 12; gap of 40 > 2.0*12, so a break.
	page := PageRuns{
		Page: 1, Width: 612, Height: 792,
		Runs: []model.TextRun{
			makeRun("para one", 72, 700, 200, 12, 1, 12),
			makeRun("para two", 72, 648, 200, 12, 1, 12),
		},
	}

	paras := b.Build([]PageRuns{page})
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
}

func TestFlowBuilder_GapJustUnderThresholdMerges(t *testing.T) {
	b := NewFlowBuilder()
	// Line height 12, threshold 24. Gap from bottom(prev)=700 to
	// top(cur)=677 is 23, just under the threshold.
	page := PageRuns{
		Page: 1, Width: 612, Height: 792,
		Runs: []model.TextRun{
			makeRun("one", 72, 700, 200, 12, 1, 12),
			makeRun("two", 72, 665, 200, 12, 1, 12),
		},
	}

	paras := b.Build([]PageRuns{page})
	if len(paras) != 1 {
		t.Fatalf("gap under threshold should merge, got %d paragraphs", len(paras))
	}
}

// A paragraph must never span a page boundary, even when the visual gap
// would allow a merge on a single page: page 1 ends with a line at y=700
// and page 2 begins with a line at y=50, both 14pt.
func TestFlowBuilder_PageBoundaryAlwaysBreaks(t *testing.T) {
	b := NewFlowBuilder()
	pages := []PageRuns{
		{
			Page: 1, Width: 612, Height: 792,
			Runs: []model.TextRun{
				makeRun("end of page one", 72, 700, 200, 14, 1, 14),
			},
		},
		{
			Page: 2, Width: 612, Height: 792,
			Runs: []model.TextRun{
				makeRun("start of page two", 72, 50, 200, 14, 2, 14),
			},
		},
	}

	paras := b.Build(pages)
	if len(paras) != 2 {
		t.Fatalf("page boundary must force a break, got %d paragraphs", len(paras))
	}

	// Page-boundary invariant: all runs in a paragraph share one page.
	for i, p := range paras {
		for _, r := range p.Runs {
			if r.Page != p.Page {
				t.Errorf("paragraph %d: run on page %d inside paragraph tagged %d", i, r.Page, p.Page)
			}
		}
	}
}

func TestFlowBuilder_EmptyPage(t *testing.T) {
	b := NewFlowBuilder()
	paras := b.Build([]PageRuns{{Page: 1, Width: 612, Height: 792}})
	if len(paras) != 0 {
		t.Errorf("empty page should yield no paragraphs, got %d", len(paras))
	}
}

func TestFlowBuilder_RoleTagging(t *testing.T) {
	b := NewFlowBuilder()
	page := PageRuns{
		Page: 1, Width: 612, Height: 792,
		Runs: []model.TextRun{
			makeRun("Big Heading", 72, 700, 300, 24, 1, 24),
			makeRun("Body text line one", 72, 640, 300, 12, 1, 12),
			makeRun("body text line two", 72, 626, 300, 12, 1, 12),
			makeRun("body text line three", 72, 612, 300, 12, 1, 12),
			makeRun("tiny caption", 72, 560, 100, 9, 1, 9),
		},
	}

	paras := b.Build([]PageRuns{page})
	if len(paras) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(paras))
	}
	if paras[0].Role != model.RoleHeadingCandidate {
		t.Errorf("first paragraph role = %v, want heading-candidate", paras[0].Role)
	}
	if paras[1].Role != model.RoleBody {
		t.Errorf("second paragraph role = %v, want body", paras[1].Role)
	}
	if paras[2].Role != model.RoleCaption {
		t.Errorf("third paragraph role = %v, want caption", paras[2].Role)
	}
}
