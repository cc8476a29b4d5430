package layout

import (
	"testing"

	"github.com/tsawler/rittdoc/model"
)

// makeBlock builds a single-run paragraph at the given vertical position.
func makeBlock(text string, y, fontSize float64, page int) model.Paragraph {
	run := model.NewTextRun(text, model.NewBBox(72, y, 300, fontSize), page, fontSize, "Times-Bold")
	return model.NewParagraph([]model.TextRun{run})
}

func TestTitleExtractor_SingleBlock(t *testing.T) {
	e := NewTitleExtractor()
	opening := []model.Paragraph{
		makeBlock("Chapter One", 700, 24, 1),
		makeBlock("Body text begins here.", 640, 12, 1),
	}

	title := e.Extract(opening)
	if title.Text != "Chapter One" {
		t.Errorf("title = %q, want %q", title.Text, "Chapter One")
	}
	if title.BlockCount != 1 {
		t.Errorf("BlockCount = %d, want 1", title.BlockCount)
	}
}

// Given N consecutive blocks of the same font size (within tolerance) with
// gaps under 2x that size, the title is the concatenation of all N blocks'
// text in document order.
func TestTitleExtractor_MultilineTitle(t *testing.T) {
	e := NewTitleExtractor()
	// 24pt lines, 20pt gaps: 20 < 2*24.
	opening := []model.Paragraph{
		makeBlock("The Complete Guide", 700, 24, 1),
		makeBlock("to Document", 656, 24, 1),
		makeBlock("Structuring", 612, 23.5, 1),
		makeBlock("Body paragraph follows the title.", 540, 12, 1),
	}

	title := e.Extract(opening)
	want := "The Complete Guide to Document Structuring"
	if title.Text != want {
		t.Errorf("title = %q, want %q", title.Text, want)
	}
	if title.BlockCount != 3 {
		t.Errorf("BlockCount = %d, want 3", title.BlockCount)
	}
}

// The anchor is the largest-font block; collection extends backward as well
// as forward so a wrapped title whose later line carries the anchor font is
// still captured whole.
func TestTitleExtractor_BackwardExtension(t *testing.T) {
	e := NewTitleExtractor()
	opening := []model.Paragraph{
		makeBlock("A Brief History", 700, 23.2, 1),
		makeBlock("of Everything", 656, 24, 1),
		makeBlock("Body text.", 560, 12, 1),
	}

	title := e.Extract(opening)
	want := "A Brief History of Everything"
	if title.Text != want {
		t.Errorf("title = %q, want %q", title.Text, want)
	}
}

func TestTitleExtractor_FontToleranceBoundsCollection(t *testing.T) {
	e := NewTitleExtractor()
	opening := []model.Paragraph{
		makeBlock("Real Title", 700, 24, 1),
		makeBlock("A subtitle in smaller type", 660, 18, 1),
	}

	title := e.Extract(opening)
	if title.Text != "Real Title" {
		t.Errorf("subtitle outside tolerance absorbed: %q", title.Text)
	}
}

func TestTitleExtractor_GapBoundsCollection(t *testing.T) {
	e := NewTitleExtractor()
	// Same font, but a 100pt gap (> 2*24) separates the blocks.
	opening := []model.Paragraph{
		makeBlock("Title Line", 700, 24, 1),
		makeBlock("Distant same-size block", 576, 24, 1),
	}

	title := e.Extract(opening)
	if title.Text != "Title Line" {
		t.Errorf("distant block absorbed into title: %q", title.Text)
	}
}

func TestTitleExtractor_PlaceholderWhenNoBlocks(t *testing.T) {
	e := NewTitleExtractor()
	title := e.Extract(nil)
	if title.Text != "Untitled" {
		t.Errorf("title = %q, want placeholder", title.Text)
	}
}

func TestTitleExtractor_TagsTitleBlocks(t *testing.T) {
	e := NewTitleExtractor()
	opening := []model.Paragraph{
		makeBlock("Chapter One", 700, 24, 1),
		makeBlock("Body.", 640, 12, 1),
	}

	e.Extract(opening)
	if opening[0].Role != model.RoleTitle {
		t.Errorf("title block not tagged RoleTitle: %v", opening[0].Role)
	}
	if opening[1].Role == model.RoleTitle {
		t.Error("body block wrongly tagged RoleTitle")
	}
}
