package layout

import (
	"sort"

	"github.com/tsawler/rittdoc/model"
)

// FlowConfig holds configuration for paragraph flow building.
type FlowConfig struct {
	// LineGapMultiplier is the multiplier applied to the locally-typical
	// line height when deciding whether two consecutive runs belong to the
	// same paragraph. Two runs merge only when their vertical gap is less
	// than LineGapMultiplier times the typical line height.
	//
	// Default: 2.0. An earlier 1.5 proved over-aggressive, merging across
	// semantically distinct blocks such as a heading immediately followed
	// by a caption.
	LineGapMultiplier float64

	// HeadingFontRatio is the font-size ratio over the page's typical size
	// above which a paragraph is tagged as a heading candidate.
	// Default: 1.2
	HeadingFontRatio float64

	// CaptionFontRatio is the font-size ratio under the page's typical size
	// below which a short paragraph is tagged as a caption.
	// Default: 0.9
	CaptionFontRatio float64

	// CaptionMaxRuns is the maximum run count for a caption candidate.
	// Default: 2
	CaptionMaxRuns int
}

// DefaultFlowConfig returns sensible default configuration.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		LineGapMultiplier: 2.0,
		HeadingFontRatio:  1.2,
		CaptionFontRatio:  0.9,
		CaptionMaxRuns:    2,
	}
}

// PageRuns carries one page's runs in reading order plus page geometry.
type PageRuns struct {
	Page   int
	Width  float64
	Height float64
	Runs   []model.TextRun
}

// FlowBuilder merges reading-ordered runs into paragraphs.
//
// The page-boundary rule is absolute and takes precedence over the spacing
// heuristic: a paragraph always terminates at a page break, even when the
// visual gap between the last run on page N and the first run on page N+1
// would otherwise allow a merge.
type FlowBuilder struct {
	config FlowConfig
}

// NewFlowBuilder creates a flow builder with default configuration.
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{config: DefaultFlowConfig()}
}

// NewFlowBuilderWithConfig creates a flow builder with custom configuration.
func NewFlowBuilderWithConfig(config FlowConfig) *FlowBuilder {
	return &FlowBuilder{config: config}
}

// Build merges each page's ordered runs into paragraphs and concatenates the
// results in page order. Pages must already be in document order with runs
// in reading order.
func (b *FlowBuilder) Build(pages []PageRuns) []model.Paragraph {
	var paragraphs []model.Paragraph
	for _, page := range pages {
		paragraphs = append(paragraphs, b.buildPage(page)...)
	}
	return paragraphs
}

// buildPage merges one page's runs. Because Build processes pages
// independently, runs from different pages can never share a paragraph.
func (b *FlowBuilder) buildPage(page PageRuns) []model.Paragraph {
	if len(page.Runs) == 0 {
		return nil
	}

	lineHeight := typicalLineHeight(page.Runs)
	maxGap := lineHeight * b.config.LineGapMultiplier

	var paragraphs []model.Paragraph
	current := []model.TextRun{page.Runs[0]}

	for _, run := range page.Runs[1:] {
		prev := current[len(current)-1]
		if verticalGap(prev, run) < maxGap {
			current = append(current, run)
			continue
		}
		paragraphs = append(paragraphs, model.NewParagraph(current))
		current = []model.TextRun{run}
	}
	paragraphs = append(paragraphs, model.NewParagraph(current))

	b.tagRoles(paragraphs, page.Runs)
	return paragraphs
}

// verticalGap measures the vertical distance between the bottom of the
// earlier run and the top of the later run. Runs on the same visual line
// (or with overlapping extents) yield a gap of zero.
func verticalGap(prev, cur model.TextRun) float64 {
	gap := prev.BBox.Bottom() - cur.BBox.Top()
	if gap < 0 {
		return 0
	}
	return gap
}

// typicalLineHeight returns the median run height for the page, falling back
// to the median font size when geometry is missing.
func typicalLineHeight(runs []model.TextRun) float64 {
	heights := make([]float64, 0, len(runs))
	for _, r := range runs {
		if r.BBox.Height > 0 {
			heights = append(heights, r.BBox.Height)
		}
	}
	if len(heights) == 0 {
		for _, r := range runs {
			if r.FontSize > 0 {
				heights = append(heights, r.FontSize)
			}
		}
	}
	if len(heights) == 0 {
		return 12.0
	}
	sort.Float64s(heights)
	return heights[len(heights)/2]
}

// tagRoles classifies paragraphs by typography relative to the page's
// typical font size.
func (b *FlowBuilder) tagRoles(paragraphs []model.Paragraph, runs []model.TextRun) {
	typical := typicalFontSize(runs)
	if typical <= 0 {
		return
	}
	for i := range paragraphs {
		p := &paragraphs[i]
		size := p.FontSize()
		switch {
		case size > typical*b.config.HeadingFontRatio:
			p.Role = model.RoleHeadingCandidate
		case size < typical*b.config.CaptionFontRatio && len(p.Runs) <= b.config.CaptionMaxRuns:
			p.Role = model.RoleCaption
		default:
			p.Role = model.RoleBody
		}
	}
}

// typicalFontSize returns the median font size across runs.
func typicalFontSize(runs []model.TextRun) float64 {
	sizes := make([]float64, 0, len(runs))
	for _, r := range runs {
		if r.FontSize > 0 {
			sizes = append(sizes, r.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
