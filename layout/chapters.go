package layout

import (
	"sort"

	"github.com/tsawler/rittdoc/model"
)

// ChapterConfig holds configuration for chapter segmentation.
type ChapterConfig struct {
	// FontRatio is the font-size ratio over the document's typical size a
	// heading-candidate paragraph must exceed to start a new chapter.
	// Default: 1.5
	FontRatio float64

	// TopBandRatio is the fraction of page height, measured from the top,
	// a chapter-opening heading must fall within.
	// Default: 0.33
	TopBandRatio float64

	// MinChapterParagraphs is the minimum paragraph count of a chapter
	// before a new break is honored; avoids splitting on consecutive
	// display headings.
	// Default: 2
	MinChapterParagraphs int
}

// DefaultChapterConfig returns sensible default configuration.
func DefaultChapterConfig() ChapterConfig {
	return ChapterConfig{
		FontRatio:            1.5,
		TopBandRatio:         0.33,
		MinChapterParagraphs: 2,
	}
}

// ChapterSegmenter splits a document's paragraph stream into chapters at
// large-font headings that open a page. A document with no qualifying
// breaks is a single chapter.
type ChapterSegmenter struct {
	config ChapterConfig
}

// NewChapterSegmenter creates a segmenter with default configuration.
func NewChapterSegmenter() *ChapterSegmenter {
	return &ChapterSegmenter{config: DefaultChapterConfig()}
}

// NewChapterSegmenterWithConfig creates a segmenter with custom configuration.
func NewChapterSegmenterWithConfig(config ChapterConfig) *ChapterSegmenter {
	return &ChapterSegmenter{config: config}
}

// Segment splits paragraphs into chapter-sized groups. pageHeights maps page
// number to page height and is used to test whether a heading opens a page.
func (s *ChapterSegmenter) Segment(paragraphs []model.Paragraph, pageHeights map[int]float64) [][]model.Paragraph {
	if len(paragraphs) == 0 {
		return nil
	}

	typical := documentTypicalFontSize(paragraphs)

	var chapters [][]model.Paragraph
	var current []model.Paragraph

	for i, p := range paragraphs {
		if i > 0 && len(current) >= s.config.MinChapterParagraphs && s.opensChapter(p, typical, pageHeights) {
			chapters = append(chapters, current)
			current = nil
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		chapters = append(chapters, current)
	}
	return chapters
}

// opensChapter reports whether a paragraph looks like a chapter-opening
// heading: oversized type sitting in the top band of its page.
func (s *ChapterSegmenter) opensChapter(p model.Paragraph, typical float64, pageHeights map[int]float64) bool {
	if typical <= 0 {
		return false
	}
	if p.MaxFontSize() < typical*s.config.FontRatio {
		return false
	}
	h, ok := pageHeights[p.Page]
	if !ok || h <= 0 {
		// Without page geometry the font signal alone decides.
		return true
	}
	return p.BBox.Top() >= h*(1-s.config.TopBandRatio)
}

// documentTypicalFontSize returns the median paragraph font size weighted by
// nothing fancier than paragraph count.
func documentTypicalFontSize(paragraphs []model.Paragraph) float64 {
	sizes := make([]float64, 0, len(paragraphs))
	for i := range paragraphs {
		if s := paragraphs[i].FontSize(); s > 0 {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
