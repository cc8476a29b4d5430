package layout

import (
	"strings"

	"github.com/tsawler/rittdoc/model"
)

// TitleConfig holds configuration for chapter title extraction.
type TitleConfig struct {
	// FontTolerance is the maximum font-size difference in points for an
	// adjacent block to be merged into the title.
	// Default: 1.0
	FontTolerance float64

	// GapMultiplier bounds the vertical gap between collected title blocks:
	// a block joins the title only when its gap from the previously
	// collected block is under GapMultiplier times the anchor font size.
	// Default: 2.0
	GapMultiplier float64

	// OpeningBlocks is the number of leading blocks of a chapter searched
	// for the title anchor.
	// Default: 8
	OpeningBlocks int

	// Placeholder is the title used when no clear title block exists.
	// Default: "Untitled"
	Placeholder string
}

// DefaultTitleConfig returns sensible default configuration.
func DefaultTitleConfig() TitleConfig {
	return TitleConfig{
		FontTolerance: 1.0,
		GapMultiplier: 2.0,
		OpeningBlocks: 8,
		Placeholder:   "Untitled",
	}
}

// TitleExtractor detects and merges multiline chapter headings.
//
// The block with the single largest font size in the chapter-opening region
// anchors the search. Collection then extends outward, forward and backward
// from the anchor, absorbing adjacent blocks whose font size is within
// FontTolerance of the anchor's and whose vertical gap from the previously
// collected block stays under GapMultiplier times the anchor size. Collected
// text is concatenated in document order, so titles that wrap onto several
// source lines come through whole rather than truncated to their first line.
type TitleExtractor struct {
	config TitleConfig
}

// NewTitleExtractor creates a title extractor with default configuration.
func NewTitleExtractor() *TitleExtractor {
	return &TitleExtractor{config: DefaultTitleConfig()}
}

// NewTitleExtractorWithConfig creates a title extractor with custom configuration.
func NewTitleExtractorWithConfig(config TitleConfig) *TitleExtractor {
	return &TitleExtractor{config: config}
}

// Extract builds the chapter title from the chapter's opening paragraphs.
// Paragraphs absorbed into the title are tagged RoleTitle in place so the
// caller can exclude them from body content.
func (e *TitleExtractor) Extract(opening []model.Paragraph) model.ChapterTitle {
	region := opening
	if e.config.OpeningBlocks > 0 && len(region) > e.config.OpeningBlocks {
		region = region[:e.config.OpeningBlocks]
	}

	anchor := e.findAnchor(region)
	if anchor < 0 {
		return model.ChapterTitle{Text: e.config.Placeholder}
	}

	anchorSize := region[anchor].MaxFontSize()
	maxGap := anchorSize * e.config.GapMultiplier

	collected := map[int]bool{anchor: true}

	// Forward from the anchor.
	last := anchor
	for i := anchor + 1; i < len(region); i++ {
		if !e.fontMatches(region[i], anchorSize) || !adjacent(region[last], region[i], maxGap) {
			break
		}
		collected[i] = true
		last = i
	}

	// Backward from the anchor.
	first := anchor
	for i := anchor - 1; i >= 0; i-- {
		if !e.fontMatches(region[i], anchorSize) || !adjacent(region[i], region[first], maxGap) {
			break
		}
		collected[i] = true
		first = i
	}

	var parts []string
	page := 0
	for i := range region {
		if !collected[i] {
			continue
		}
		if page == 0 {
			page = region[i].Page
		}
		region[i].Role = model.RoleTitle
		parts = append(parts, strings.TrimSpace(region[i].Text()))
	}

	return model.ChapterTitle{
		Text:       strings.Join(parts, " "),
		FontSize:   anchorSize,
		Page:       page,
		BlockCount: len(parts),
	}
}

// findAnchor locates the single largest-font block in the opening region.
// A tie for largest means there is no single anchor; the earlier block wins,
// which keeps behavior deterministic for repeated runs.
func (e *TitleExtractor) findAnchor(region []model.Paragraph) int {
	best := -1
	bestSize := 0.0
	for i := range region {
		size := region[i].MaxFontSize()
		if size <= 0 || region[i].Text() == "" {
			continue
		}
		if size > bestSize {
			bestSize = size
			best = i
		}
	}
	return best
}

// fontMatches reports whether a candidate block's font size is within the
// configured tolerance of the anchor's.
func (e *TitleExtractor) fontMatches(p model.Paragraph, anchorSize float64) bool {
	diff := p.MaxFontSize() - anchorSize
	return diff <= e.config.FontTolerance && diff >= -e.config.FontTolerance
}

// adjacent reports whether two blocks sit close enough vertically to belong
// to the same title. The upper block precedes the lower in document order;
// title blocks never span pages.
func adjacent(upper, lower model.Paragraph, maxGap float64) bool {
	if upper.Page != lower.Page {
		return false
	}
	gap := upper.BBox.Bottom() - lower.BBox.Top()
	if gap < 0 {
		gap = 0
	}
	return gap < maxGap
}
