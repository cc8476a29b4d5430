package dtd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"

	"github.com/tsawler/rittdoc/model"
)

// MaxSectionDepth is the deepest section nesting the schema supports.
const MaxSectionDepth = 5

// ErrSectionTooDeep is returned when generic sections nest beyond
// MaxSectionDepth. Deep nesting is an error condition, never silently
// flattened.
var ErrSectionTooDeep = errors.New("dtd: section nesting exceeds supported depth")

// chapterChildWhitelist is the set of elements a chapter may contain
// directly under the schema's chapter content model. Everything else must
// live inside a section.
var chapterChildWhitelist = map[string]bool{
	"title": true,
	"toc":   true,
	"sect1": true,
}

// bannedElements maps generic elements the schema rejects to their legal
// equivalents. Context-sensitive members (term, listitem inside a variable
// list entry) are handled during the variablelist rewrite rather than here.
var bannedElements = map[string]string{
	"variablelist":   "glosslist",
	"varlistentry":   "glossentry",
	"informalfigure": "figure",
	"informaltable":  "table",
}

// TransformChapter rewrites a chapter document in place so every element is
// legal under the RittDoc DTD, without altering semantic content:
//
//   - generic section elements are renumbered to sect1..sect5 by nesting
//     depth; nesting beyond five is an error
//   - banned generic constructs are rewritten to their schema-legal
//     equivalents
//   - top-level content outside the chapter's direct-child whitelist is
//     wrapped in an auto-generated first section
//   - every id is namespaced with the owning chapter's identifier, and
//     linkend references are rewritten to match
//
// The transform is idempotent: on already-compliant input it is a no-op.
func TransformChapter(doc *etree.Document) error {
	root := doc.Root()
	if root == nil || root.Tag != "chapter" {
		return errors.New("dtd: document root is not a chapter")
	}
	chapterID := root.SelectAttrValue("id", "")

	rewriteBanned(root)

	if err := renumberSections(root, 0); err != nil {
		return fmt.Errorf("%w (chapter %s)", err, chapterID)
	}

	wrapLooseContent(root)

	if chapterID != "" {
		namespaceIDs(root, chapterID+"-")
	}
	return nil
}

// rewriteBanned substitutes banned generic elements throughout the tree.
func rewriteBanned(el *etree.Element) {
	if el.Tag == "variablelist" {
		rewriteVariableList(el)
	}
	if repl, ok := bannedElements[el.Tag]; ok {
		el.Tag = repl
	}
	for _, child := range el.ChildElements() {
		rewriteBanned(child)
	}
}

// rewriteVariableList converts a generic variable-list construct into the
// glossary-list construct: term becomes glossterm and the entry's listitem
// becomes glossdef. Child entries are renamed by the bannedElements pass.
func rewriteVariableList(list *etree.Element) {
	for _, entry := range list.ChildElements() {
		if entry.Tag != "varlistentry" && entry.Tag != "glossentry" {
			continue
		}
		for _, child := range entry.ChildElements() {
			switch child.Tag {
			case "term":
				child.Tag = "glossterm"
			case "listitem":
				child.Tag = "glossdef"
			}
		}
	}
}

// renumberSections renames generic section elements to sectN by nesting
// depth. Existing sectN elements are normalized to their actual depth so a
// compliant tree passes through unchanged.
func renumberSections(el *etree.Element, sectionDepth int) error {
	depth := sectionDepth
	if isSectionTag(el.Tag) {
		depth++
		if depth > MaxSectionDepth {
			return ErrSectionTooDeep
		}
		el.Tag = fmt.Sprintf("sect%d", depth)
	}
	for _, child := range el.ChildElements() {
		if err := renumberSections(child, depth); err != nil {
			return err
		}
	}
	return nil
}

// isSectionTag matches the generic section element and already-numbered
// sect1..sect5 variants.
func isSectionTag(tag string) bool {
	if tag == "section" {
		return true
	}
	return len(tag) == 5 && strings.HasPrefix(tag, "sect") && tag[4] >= '1' && tag[4] <= '5'
}

// wrapLooseContent moves chapter children outside the direct-child
// whitelist into one auto-generated leading section.
func wrapLooseContent(root *etree.Element) {
	var loose []*etree.Element
	for _, child := range root.ChildElements() {
		if !chapterChildWhitelist[child.Tag] {
			loose = append(loose, child)
		}
	}
	if len(loose) == 0 {
		return
	}

	wrapper := etree.NewElement("sect1")
	wrapper.CreateElement("title")
	for _, el := range loose {
		root.RemoveChild(el)
		wrapper.AddChild(el)
	}

	// The wrapper becomes the first section: insert before any existing
	// sect1, otherwise append after title/toc.
	insertAt := len(root.ChildElements())
	for i, child := range root.ChildElements() {
		if child.Tag == "sect1" {
			insertAt = i
			break
		}
	}
	root.InsertChildAt(childIndex(root, insertAt), wrapper)
}

// childIndex converts an element-child ordinal to a token index on the
// parent, accounting for interleaved character data.
func childIndex(parent *etree.Element, elementOrdinal int) int {
	seen := 0
	for i, tok := range parent.Child {
		if _, ok := tok.(*etree.Element); ok {
			if seen == elementOrdinal {
				return i
			}
			seen++
		}
	}
	return len(parent.Child)
}

// chapterScopedRef matches linkend values that already name a chapter
// namespace (ch3, ch3-intro). Cross-chapter references arrive in that form
// and must not be re-prefixed with the referencing chapter's id.
var chapterScopedRef = regexp.MustCompile(`^ch[0-9]+(-|$)`)

// namespaceIDs prefixes id and linkend attributes with the chapter prefix.
// Already-prefixed values are left alone, which keeps the transform
// idempotent. The chapter element's own id is the namespace and is not
// rewritten.
func namespaceIDs(root *etree.Element, prefix string) {
	for _, child := range root.ChildElements() {
		namespaceIDsIn(child, prefix)
	}
}

func namespaceIDsIn(el *etree.Element, prefix string) {
	if attr := el.SelectAttr("id"); attr != nil && attr.Value != "" {
		if !strings.HasPrefix(attr.Value, prefix) {
			attr.Value = prefix + attr.Value
		}
	}
	if attr := el.SelectAttr("linkend"); attr != nil && attr.Value != "" {
		if !strings.HasPrefix(attr.Value, prefix) && !chapterScopedRef.MatchString(attr.Value) {
			attr.Value = prefix + attr.Value
		}
	}
	for _, child := range el.ChildElements() {
		namespaceIDsIn(child, prefix)
	}
}

// metaPlaceholders are the values substituted for absent book metadata.
// The schema requires every bookinfo child even when the source supplies
// nothing.
var metaPlaceholders = model.BookMeta{
	Title:         "Untitled Document",
	ISBN:          "000-0-0000-0000-0",
	Authors:       []string{"Unknown Author"},
	Publisher:     "Unknown Publisher",
	CopyrightYear: "0000",
}

// FillMetaPlaceholders returns metadata with every schema-required field
// populated, substituting explicit placeholders for absent values.
func FillMetaPlaceholders(meta model.BookMeta) model.BookMeta {
	out := meta
	if out.Title == "" {
		out.Title = metaPlaceholders.Title
	}
	if out.ISBN == "" {
		out.ISBN = metaPlaceholders.ISBN
	}
	if len(out.Authors) == 0 {
		out.Authors = append([]string(nil), metaPlaceholders.Authors...)
	}
	if out.Publisher == "" {
		out.Publisher = metaPlaceholders.Publisher
	}
	if out.CopyrightYear == "" {
		out.CopyrightYear = metaPlaceholders.CopyrightYear
	}
	return out
}
