package layout

import (
	"testing"

	"github.com/tsawler/rittdoc/model"
)

func TestChapterSegmenter_SingleChapterWithoutBreaks(t *testing.T) {
	s := NewChapterSegmenter()
	paras := []model.Paragraph{
		makeBlock("Plain text one.", 700, 12, 1),
		makeBlock("Plain text two.", 660, 12, 1),
		makeBlock("Plain text three.", 620, 12, 2),
	}

	chapters := s.Segment(paras, map[int]float64{1: 792, 2: 792})
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
}

func TestChapterSegmenter_BreaksOnPageTopHeading(t *testing.T) {
	s := NewChapterSegmenter()
	paras := []model.Paragraph{
		makeBlock("Chapter One", 700, 24, 1),
		makeBlock("Body one a.", 650, 12, 1),
		makeBlock("Body one b.", 610, 12, 1),
		makeBlock("Chapter Two", 700, 24, 2),
		makeBlock("Body two.", 650, 12, 2),
	}

	chapters := s.Segment(paras, map[int]float64{1: 792, 2: 792})
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if len(chapters[0]) != 3 || len(chapters[1]) != 2 {
		t.Errorf("unexpected split: %d and %d paragraphs", len(chapters[0]), len(chapters[1]))
	}
}

func TestChapterSegmenter_LowHeadingDoesNotBreak(t *testing.T) {
	s := NewChapterSegmenter()
	// Large-font block sits at the bottom third of the page: not a
	// chapter opening.
	paras := []model.Paragraph{
		makeBlock("Body a.", 700, 12, 1),
		makeBlock("Body b.", 660, 12, 1),
		makeBlock("Display Quote", 150, 24, 1),
		makeBlock("Body c.", 100, 12, 1),
	}

	chapters := s.Segment(paras, map[int]float64{1: 792})
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
}

func TestChapterSegmenter_Empty(t *testing.T) {
	s := NewChapterSegmenter()
	if got := s.Segment(nil, nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
