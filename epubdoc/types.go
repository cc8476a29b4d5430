// Package epubdoc reads EPUB publications and converts them into the
// structured document tree. The spine is authoritative: each spine XHTML
// document becomes exactly one output chapter, in spine order, with no
// heuristic chapter splitting and no content loss.
package epubdoc

// Package represents the parsed OPF document.
type Package struct {
	Metadata Metadata
	Manifest map[string]ManifestItem // keyed by ID
	Spine    []SpineItem
	Version  string // "2.0" or "3.0"
}

// Metadata contains EPUB metadata (Dublin Core).
type Metadata struct {
	Title      string
	Creator    []string // multiple authors possible
	Language   string
	Identifier string // ISBN, UUID, etc.
	Publisher  string
	Date       string
	Rights     string
}

// ManifestItem represents a file declared in the EPUB manifest.
type ManifestItem struct {
	ID        string
	Href      string
	MediaType string
}

// SpineItem represents one content document in reading order.
type SpineItem struct {
	IDRef  string
	Href   string // resolved from the manifest
	Linear bool   // true if part of the main reading order
}
