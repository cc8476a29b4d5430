package model

// BookMeta holds book-level metadata carried on a structured document.
// Fields left empty by the source are filled with explicit placeholders by
// the compliance transformer; the target schema requires their presence.
type BookMeta struct {
	Title         string
	ISBN          string
	Authors       []string
	Publisher     string
	CopyrightYear string
	Language      string
}

// StructuredDocument is the canonical intermediate tree produced by both the
// PDF and EPUB structuring paths. One instance exists per conversion job and
// is discarded after packaging.
type StructuredDocument struct {
	Meta     BookMeta
	Chapters []*Chapter
}

// NewStructuredDocument creates an empty document.
func NewStructuredDocument() *StructuredDocument {
	return &StructuredDocument{}
}

// AddChapter appends a chapter and assigns its index.
func (d *StructuredDocument) AddChapter(ch *Chapter) {
	ch.Index = len(d.Chapters)
	d.Chapters = append(d.Chapters, ch)
}

// ChapterCount returns the number of chapters.
func (d *StructuredDocument) ChapterCount() int {
	if d == nil {
		return 0
	}
	return len(d.Chapters)
}

// Chapter is the top-level structural unit of the output document. It maps
// 1:1 to one EPUB spine file or one detected PDF chapter boundary.
type Chapter struct {
	// ID is the chapter identifier, unique within the document. It is used
	// as the id-namespacing prefix during compliance transformation and as
	// the chapter's output file stem.
	ID string

	// Title is the chapter title text.
	Title string

	// Index is the chapter's 0-based position in document order.
	Index int

	// SourcePage is the 1-based page the chapter starts on (PDF path).
	SourcePage int

	// SourceHref is the spine href the chapter came from (EPUB path).
	SourceHref string

	// Blocks are the chapter's content blocks in document order.
	Blocks []Block
}

// Block is a content node in a chapter body. The set of implementations is
// closed: Section, Para, Figure, Table, List and VariableList.
type Block interface {
	blockNode()
}

// Section is a nested structural division. Nesting depth determines the
// output element (sect1 through sect5); depth beyond five is rejected by the
// compliance transformer.
type Section struct {
	ID     string
	Title  string
	Blocks []Block
}

// Para is a leaf paragraph.
type Para struct {
	ID   string
	Text string

	// Page is the source page number, 0 when unknown (EPUB path).
	Page int

	// Role carries the layout classification through to XML emission.
	Role ParagraphRole

	// Refs are linkend targets of cross-references carried by this
	// paragraph, in source order.
	Refs []string
}

// Figure is an image block. Informal figures are normalized to formal ones
// during compliance transformation.
type Figure struct {
	ID       string
	Src      string // resource path as seen in the source document
	Alt      string
	Caption  string
	Informal bool
}

// Table is a simple grid table.
type Table struct {
	ID       string
	Caption  string
	Header   []string
	Rows     [][]string
	Informal bool
}

// List is an itemized or ordered list.
type List struct {
	Ordered bool
	Items   []string
}

// TermDef is one term/definition pair in a variable or glossary list.
type TermDef struct {
	ID         string
	Term       string
	Definition string
}

// VariableList is the generic term/definition construct as emitted by the
// structuring paths. The target schema does not accept it; the compliance
// transformer rewrites it to the schema's glossary list.
type VariableList struct {
	Entries []TermDef
}

func (*Section) blockNode()      {}
func (*Para) blockNode()         {}
func (*Figure) blockNode()       {}
func (*Table) blockNode()        {}
func (*List) blockNode()         {}
func (*VariableList) blockNode() {}

// WalkBlocks visits every block in the chapter depth-first, sections before
// their children. The walk stops when fn returns false.
func (c *Chapter) WalkBlocks(fn func(Block) bool) {
	walkBlocks(c.Blocks, fn)
}

func walkBlocks(blocks []Block, fn func(Block) bool) bool {
	for _, b := range blocks {
		if !fn(b) {
			return false
		}
		if s, ok := b.(*Section); ok {
			if !walkBlocks(s.Blocks, fn) {
				return false
			}
		}
	}
	return true
}
