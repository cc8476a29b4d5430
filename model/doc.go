// Package model defines the shared data model for the rittdoc conversion
// pipeline: text runs and paragraphs produced by layout analysis, the
// structured document tree both structuring paths converge on, and the
// geometric primitives they are built from.
package model
