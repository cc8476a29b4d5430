// Package layout reconstructs document structure from page geometry: it
// orders raw text runs into reading order, merges ordered runs into
// paragraphs, segments paragraphs into chapters and extracts chapter titles
// from font-size clustering.
//
// All heuristics are driven by configuration structs with documented
// defaults; the line-gap multiplier and title font tolerance are the primary
// tuning knobs for output quality.
package layout
