package epubdoc

import (
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/tsawler/rittdoc/model"
	"github.com/tsawler/rittdoc/refmap"
)

// Processor converts an opened EPUB into the structured document tree.
// Every image reference and internal link target encountered while
// walking a spine document is recorded with the reference mapper before
// that chapter is considered complete.
type Processor struct {
	mapper *refmap.Mapper
	log    *zap.Logger
	imgSeq int
}

// NewProcessor creates a Processor. A nil logger disables logging.
func NewProcessor(mapper *refmap.Mapper, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{mapper: mapper, log: log}
}

// ChapterFailure records a spine document that could not be processed.
// Failures are per-chapter: the remaining spine continues.
type ChapterFailure struct {
	Href  string
	Index int
	Err   error
}

// Document processes every linear spine item into one chapter each, in
// spine order. Chapter identifiers are assigned by spine position and
// stay stable even when an earlier spine document fails, so
// cross-chapter references keep resolving.
func (p *Processor) Document(r *Reader) (*model.StructuredDocument, []ChapterFailure, error) {
	doc := model.NewStructuredDocument()
	doc.Meta = bookMeta(r.Package().Metadata)

	spine := r.Spine()
	hrefChapter := make(map[string]string, len(spine))
	for i, item := range spine {
		hrefChapter[item.Href] = chapterID(i)
	}

	var failures []ChapterFailure
	for i, item := range spine {
		ch, err := p.processSpineDoc(r, item, i, hrefChapter)
		if err != nil {
			p.log.Warn("spine document failed",
				zap.String("href", item.Href),
				zap.Int("index", i),
				zap.Error(err))
			failures = append(failures, ChapterFailure{Href: item.Href, Index: i, Err: err})
			continue
		}
		ch.Index = i
		doc.Chapters = append(doc.Chapters, ch)
	}
	return doc, failures, nil
}

func chapterID(spineIndex int) string {
	return fmt.Sprintf("ch%d", spineIndex+1)
}

func (p *Processor) processSpineDoc(r *Reader, item SpineItem, index int, hrefChapter map[string]string) (*model.Chapter, error) {
	data, err := r.ReadFile(item.Href)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("epubdoc: parsing %s: %w", item.Href, err)
	}

	ch := &model.Chapter{
		ID:         chapterID(index),
		SourceHref: item.Href,
	}
	b := &builder{
		proc:        p,
		reader:      r,
		chapter:     ch,
		href:        item.Href,
		hrefChapter: hrefChapter,
	}
	if body := findElement(root, "body"); body != nil {
		b.walkChildren(body)
	}
	b.flushAnchors()
	if ch.Title == "" {
		// A spine document with no heading still becomes a chapter; the
		// file stem stands in for the missing title.
		ch.Title = titleFromHref(item.Href)
	}

	p.log.Debug("chapter built",
		zap.String("id", ch.ID),
		zap.String("href", item.Href),
		zap.Int("blocks", len(ch.Blocks)))
	return ch, nil
}

func titleFromHref(href string) string {
	base := path.Base(href)
	return strings.TrimSuffix(base, path.Ext(base))
}

func bookMeta(md Metadata) model.BookMeta {
	return model.BookMeta{
		Title:         cleanText(md.Title),
		ISBN:          isbnFrom(md.Identifier),
		Authors:       md.Creator,
		Publisher:     cleanText(md.Publisher),
		CopyrightYear: yearFrom(md.Date),
		Language:      md.Language,
	}
}

// isbnFrom passes through identifiers that look like ISBNs and drops
// UUIDs and other opaque identifiers.
func isbnFrom(id string) string {
	id = strings.TrimPrefix(strings.TrimSpace(id), "urn:isbn:")
	digits := 0
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == 'X' || r == 'x':
		default:
			return ""
		}
	}
	if digits == 10 || digits == 13 {
		return id
	}
	return ""
}

func yearFrom(date string) string {
	date = strings.TrimSpace(date)
	if len(date) >= 4 {
		year := date[:4]
		for _, r := range year {
			if r < '0' || r > '9' {
				return ""
			}
		}
		return year
	}
	return ""
}

// builder accumulates blocks for one chapter while walking its XHTML
// tree. Sections open and close with heading levels; everything between
// headings lands in the innermost open section.
type builder struct {
	proc        *Processor
	reader      *Reader
	chapter     *model.Chapter
	href        string
	hrefChapter map[string]string

	sections   []*model.Section
	titleLevel int // heading level that supplied the chapter title, 0 before
	paraSeq    int
	pending    []string // anchor ids waiting for a block to carry them
}

func (b *builder) append(blk model.Block) {
	b.stampPending(blk)
	if p, ok := blk.(*model.Para); ok && p.ID == "" {
		p.ID = b.nextParaID()
	}
	if n := len(b.sections); n > 0 {
		s := b.sections[n-1]
		s.Blocks = append(s.Blocks, blk)
		return
	}
	b.chapter.Blocks = append(b.chapter.Blocks, blk)
}

// stampPending moves the oldest held anchor id onto a block that has no
// id of its own. Anchors sit on elements like div, span and empty a
// that never become blocks themselves; stamping keeps their ids in the
// chapter XML so links to them stay resolvable.
func (b *builder) stampPending(blk model.Block) {
	if len(b.pending) == 0 {
		return
	}
	var slot *string
	switch t := blk.(type) {
	case *model.Para:
		slot = &t.ID
	case *model.Section:
		slot = &t.ID
	case *model.Figure:
		slot = &t.ID
	case *model.Table:
		slot = &t.ID
	}
	if slot == nil || *slot != "" {
		return
	}
	*slot = b.pending[0]
	b.pending = b.pending[1:]
}

// holdAnchor registers an anchor whose element will not be emitted as a
// block and queues its id for the next block that can carry it.
func (b *builder) holdAnchor(id string) {
	if id == "" {
		return
	}
	b.registerAnchor(id)
	b.pending = append(b.pending, id)
}

// flushAnchors emits empty carrier paragraphs for held anchor ids no
// block absorbed, so every registered link target exists in the output.
func (b *builder) flushAnchors() {
	pending := b.pending
	b.pending = nil
	for _, id := range pending {
		b.append(&model.Para{ID: id})
	}
}

func (b *builder) walkChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.walk(c)
	}
}

func (b *builder) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// Bare text outside any paragraph element still becomes content.
		if text := cleanText(n.Data); text != "" {
			b.append(&model.Para{Text: text})
		}
	case html.ElementNode:
		b.element(n)
	}
}

func (b *builder) element(n *html.Node) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		b.heading(int(n.Data[1]-'0'), n)
	case "p":
		b.paragraph(n)
	case "img":
		b.image(n, "")
	case "figure":
		b.figureElement(n)
	case "table":
		b.table(n)
	case "ol", "ul":
		b.list(n)
	case "dl":
		b.definitionList(n)
	case "script", "style", "head", "nav":
		// non-content
	default:
		b.holdAnchor(attr(n, "id"))
		b.walkChildren(n)
	}
}

// heading makes the first heading in the document the chapter title;
// every later heading opens a section at a depth relative to the title's
// level.
func (b *builder) heading(level int, n *html.Node) {
	text := cleanText(textOf(n))
	id := attr(n, "id")

	if b.titleLevel == 0 {
		b.titleLevel = level
		b.chapter.Title = text
		// The title heading has no element of its own in the output;
		// its anchor rides on the first body block instead.
		b.holdAnchor(id)
		return
	}
	b.registerAnchor(id)

	depth := level - b.titleLevel
	if depth < 1 {
		depth = 1
	}
	if depth > len(b.sections)+1 {
		depth = len(b.sections) + 1
	}
	b.sections = b.sections[:depth-1]
	s := &model.Section{ID: id, Title: text}
	b.append(s)
	b.sections = append(b.sections, s)
}

func (b *builder) paragraph(n *html.Node) {
	var sb strings.Builder
	var refs []string
	b.inlineText(n, &sb, &refs)

	text := cleanText(sb.String())
	id := attr(n, "id")
	if text != "" || len(refs) > 0 {
		b.registerAnchor(id)
		b.append(&model.Para{ID: id, Text: text, Refs: refs})
	} else {
		// The paragraph itself is dropped; its anchor must not be.
		b.holdAnchor(id)
	}

	// Images nested inside paragraphs are pulled out as sibling figures,
	// even from paragraphs that carry no text of their own.
	forEachElement(n, "img", func(img *html.Node) {
		b.image(img, "")
	})
}

// inlineText flattens the inline content of a node into running text,
// recording any internal link targets encountered.
func (b *builder) inlineText(n *html.Node, sb *strings.Builder, refs *[]string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if c.Data == "a" {
				if ref := b.linkRef(c); ref != "" {
					*refs = append(*refs, ref)
				}
				b.holdAnchor(attr(c, "id"))
			}
			if c.Data != "img" {
				b.inlineText(c, sb, refs)
			}
		}
	}
}

// linkRef records an internal link with the reference mapper and returns
// the cross-reference token for the paragraph. External links return "".
func (b *builder) linkRef(a *html.Node) string {
	href := attr(a, "href")
	if href == "" || strings.Contains(href, "://") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	file, frag, _ := strings.Cut(href, "#")
	if file == "" {
		// Same-document link; the compliance transformer prefixes it
		// with this chapter's id.
		if frag == "" {
			return ""
		}
		b.proc.mapper.RecordReference(b.href+"#"+frag, b.chapter.ID)
		return frag
	}

	resolved := resolveHref(path.Dir(b.href), file)
	target := resolved
	if frag != "" {
		target += "#" + frag
	}
	b.proc.mapper.RecordReference(target, b.chapter.ID)

	targetChapter, ok := b.hrefChapter[resolved]
	if !ok {
		// Link into a non-spine file; there is no chapter to point at.
		return ""
	}
	if frag == "" {
		return targetChapter
	}
	if resolved == b.href {
		return frag
	}
	return targetChapter + "-" + frag
}

// registerAnchor records an element id as a link target resource.
func (b *builder) registerAnchor(id string) {
	if id == "" {
		return
	}
	origin := b.href + "#" + id
	if _, ok := b.proc.mapper.Lookup(origin); ok {
		return
	}
	err := b.proc.mapper.Register(origin, b.chapter.ID+"-"+id, refmap.KindLink, refmap.Geometry{})
	if err != nil {
		return
	}
	b.proc.mapper.RecordReference(origin, b.chapter.ID)
}

func (b *builder) image(n *html.Node, caption string) {
	src := attr(n, "src")
	if src == "" {
		return
	}
	resolved := resolveHref(path.Dir(b.href), src)
	b.registerImage(resolved)
	b.proc.mapper.RecordReference(resolved, b.chapter.ID)

	b.append(&model.Figure{
		ID:       attr(n, "id"),
		Src:      resolved,
		Alt:      cleanText(attr(n, "alt")),
		Caption:  caption,
		Informal: caption == "",
	})
}

// registerImage registers an image resource on first sight, probing its
// pixel dimensions from the archived bytes.
func (b *builder) registerImage(archivePath string) {
	if _, ok := b.proc.mapper.Lookup(archivePath); ok {
		return
	}
	geom := refmap.Geometry{}
	if data, err := b.reader.ReadFile(archivePath); err == nil {
		geom = probeGeometry(archivePath, data)
	} else {
		b.proc.log.Warn("image missing from archive",
			zap.String("path", archivePath),
			zap.String("chapter", b.chapter.ID))
	}
	b.proc.imgSeq++
	name := fmt.Sprintf("img-%04d%s", b.proc.imgSeq, strings.ToLower(path.Ext(archivePath)))
	_ = b.proc.mapper.Register(archivePath, name, refmap.KindImage, geom)
}

func (b *builder) figureElement(n *html.Node) {
	b.holdAnchor(attr(n, "id"))
	caption := ""
	if fc := findElement(n, "figcaption"); fc != nil {
		caption = cleanText(textOf(fc))
	}
	if img := findElement(n, "img"); img != nil {
		b.image(img, caption)
	}
}

func (b *builder) table(n *html.Node) {
	tbl := &model.Table{ID: attr(n, "id"), Informal: true}
	b.registerAnchor(tbl.ID)
	if cp := findElement(n, "caption"); cp != nil {
		tbl.Caption = cleanText(textOf(cp))
		tbl.Informal = false
	}

	forEachElement(n, "tr", func(tr *html.Node) {
		var cells []string
		header := false
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "th":
				header = true
				cells = append(cells, cleanText(textOf(c)))
			case "td":
				cells = append(cells, cleanText(textOf(c)))
			}
		}
		if len(cells) == 0 {
			return
		}
		if header && tbl.Header == nil && len(tbl.Rows) == 0 {
			tbl.Header = cells
			return
		}
		tbl.Rows = append(tbl.Rows, cells)
	})

	if tbl.Header != nil || len(tbl.Rows) > 0 {
		b.append(tbl)
	} else if tbl.ID != "" {
		b.pending = append(b.pending, tbl.ID)
	}
}

func (b *builder) list(n *html.Node) {
	b.holdAnchor(attr(n, "id"))
	lst := &model.List{Ordered: n.Data == "ol"}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "li" {
			if item := cleanText(textOf(c)); item != "" {
				lst.Items = append(lst.Items, item)
			}
		}
	}
	if len(lst.Items) > 0 {
		b.append(lst)
	}
}

// definitionList turns a dl into the generic variable-list construct.
// The compliance transformer rewrites it to the schema's glossary list.
func (b *builder) definitionList(n *html.Node) {
	b.holdAnchor(attr(n, "id"))
	vl := &model.VariableList{}
	var cur *model.TermDef
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			if cur != nil && cur.Term != "" {
				vl.Entries = append(vl.Entries, *cur)
			}
			cur = &model.TermDef{ID: attr(c, "id"), Term: cleanText(textOf(c))}
			b.registerAnchor(cur.ID)
		case "dd":
			if cur != nil {
				def := cleanText(textOf(c))
				if cur.Definition != "" {
					cur.Definition += " " + def
				} else {
					cur.Definition = def
				}
			}
		}
	}
	if cur != nil && cur.Term != "" {
		vl.Entries = append(vl.Entries, *cur)
	}
	if len(vl.Entries) > 0 {
		b.append(vl)
	}
}

func (b *builder) nextParaID() string {
	b.paraSeq++
	return fmt.Sprintf("p%d", b.paraSeq)
}

// cleanText collapses whitespace runs and applies Unicode NFC
// normalization, so visually identical source text always produces
// byte-identical output.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for g := c.FirstChild; g != nil; g = g.NextSibling {
			visit(g)
		}
	}
	visit(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func forEachElement(n *html.Node, tag string, fn func(*html.Node)) {
	if n.Type == html.ElementNode && n.Data == tag {
		fn(n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		forEachElement(c, tag, fn)
	}
}
