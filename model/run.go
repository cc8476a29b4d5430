package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StyleFlags describes typographic style bits attached to a TextRun.
type StyleFlags uint8

const (
	// StyleBold indicates bold text.
	StyleBold StyleFlags = 1 << iota
	// StyleItalic indicates italic or oblique text.
	StyleItalic
)

// IsBold returns true if the bold flag is set.
func (s StyleFlags) IsBold() bool { return s&StyleBold != 0 }

// IsItalic returns true if the italic flag is set.
func (s StyleFlags) IsItalic() bool { return s&StyleItalic != 0 }

// TextRun is the atomic unit delivered by a content extractor: one run of
// text with its position, page and typography. Runs are value types and are
// never modified after extraction; layout analysis only reorders and groups
// them.
type TextRun struct {
	// Text is the run's character content.
	Text string

	// BBox is the run's bounding geometry on the page.
	BBox BBox

	// Page is the 1-based page number the run was extracted from.
	Page int

	// FontSize is the nominal font size in points.
	FontSize float64

	// FontFamily is the font family name as reported by the source.
	FontFamily string

	// Style holds bold/italic flags.
	Style StyleFlags
}

// NewTextRun creates a run and derives style flags from the font family name
// when the extractor did not supply them explicitly.
func NewTextRun(text string, bbox BBox, page int, fontSize float64, fontFamily string) TextRun {
	return TextRun{
		Text:       text,
		BBox:       bbox,
		Page:       page,
		FontSize:   fontSize,
		FontFamily: fontFamily,
		Style:      styleFromFontName(fontFamily),
	}
}

// styleFromFontName infers bold/italic from common font naming conventions
// (e.g. "Times-BoldItalic", "Helvetica Oblique").
func styleFromFontName(name string) StyleFlags {
	lower := strings.ToLower(name)
	var flags StyleFlags
	if strings.Contains(lower, "bold") {
		flags |= StyleBold
	}
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		flags |= StyleItalic
	}
	return flags
}

// ParagraphRole classifies a paragraph's likely function in the document.
type ParagraphRole int

const (
	// RoleBody is ordinary body text.
	RoleBody ParagraphRole = iota
	// RoleHeadingCandidate marks a block whose typography suggests a heading.
	RoleHeadingCandidate
	// RoleCaption marks a short, small-font block near a figure or table.
	RoleCaption
	// RoleTitle marks a block absorbed into a chapter title.
	RoleTitle
)

// String returns a string representation of the role.
func (r ParagraphRole) String() string {
	switch r {
	case RoleHeadingCandidate:
		return "heading-candidate"
	case RoleCaption:
		return "caption"
	case RoleTitle:
		return "title"
	default:
		return "body"
	}
}

// Paragraph is an ordered sequence of TextRuns considered one semantic block.
//
// Invariant: all runs in a paragraph share the same page number. Page
// boundaries always force a paragraph break regardless of vertical-gap
// heuristics; the flow builder enforces this.
type Paragraph struct {
	// Runs are the contributing text runs in reading order.
	Runs []TextRun

	// Page is the page number of the first contributing run.
	Page int

	// BBox is the aggregate bounding box over all runs.
	BBox BBox

	// Role is the detected role tag.
	Role ParagraphRole
}

// NewParagraph builds a paragraph from ordered runs, computing the page tag
// and aggregate bounding box.
func NewParagraph(runs []TextRun) Paragraph {
	p := Paragraph{Runs: runs}
	if len(runs) > 0 {
		p.Page = runs[0].Page
		p.BBox = runs[0].BBox
		for _, r := range runs[1:] {
			p.BBox = p.BBox.Union(r.BBox)
		}
	}
	return p
}

// Text assembles the paragraph's text, joining runs with spaces and folding
// hyphenated line breaks. The result is NFC-normalized so visually equal
// source text compares equal.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for i, r := range p.Runs {
		t := r.Text
		if i < len(p.Runs)-1 && strings.HasSuffix(t, "-") {
			// Fold soft hyphenation at line ends.
			sb.WriteString(strings.TrimSuffix(t, "-"))
			continue
		}
		sb.WriteString(t)
		if i < len(p.Runs)-1 {
			sb.WriteString(" ")
		}
	}
	return norm.NFC.String(sb.String())
}

// FontSize returns the average font size across runs, or 0 for an empty
// paragraph.
func (p *Paragraph) FontSize() float64 {
	if len(p.Runs) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range p.Runs {
		total += r.FontSize
	}
	return total / float64(len(p.Runs))
}

// MaxFontSize returns the largest run font size in the paragraph.
func (p *Paragraph) MaxFontSize() float64 {
	max := 0.0
	for _, r := range p.Runs {
		if r.FontSize > max {
			max = r.FontSize
		}
	}
	return max
}

// ChapterTitle is a chapter heading assembled from one or more adjacent
// blocks of matching typography. It is computed once per chapter and not
// modified afterward.
type ChapterTitle struct {
	// Text is the merged title text in document order.
	Text string

	// FontSize is the anchor block's font size.
	FontSize float64

	// Page is the page the title starts on.
	Page int

	// BlockCount is the number of source blocks merged into the title.
	BlockCount int
}
