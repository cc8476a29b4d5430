package dtd

import (
	"github.com/beevik/etree"

	"github.com/tsawler/rittdoc/model"
)

// EmitChapter serializes one structured chapter to its generic XML form.
// The output is not yet schema-legal: generic section nesting, variable
// lists and informal figure/table variants all pass through as-is and are
// rewritten by TransformChapter.
func EmitChapter(ch *model.Chapter) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective(`DOCTYPE chapter SYSTEM "rittdoc.dtd"`)

	root := doc.CreateElement("chapter")
	root.CreateAttr("id", ch.ID)
	root.CreateElement("title").SetText(ch.Title)

	emitBlocks(root, ch.Blocks)
	return doc
}

func emitBlocks(parent *etree.Element, blocks []model.Block) {
	for _, b := range blocks {
		switch v := b.(type) {
		case *model.Section:
			sec := parent.CreateElement("section")
			if v.ID != "" {
				sec.CreateAttr("id", v.ID)
			}
			sec.CreateElement("title").SetText(v.Title)
			emitBlocks(sec, v.Blocks)

		case *model.Para:
			para := parent.CreateElement("para")
			if v.ID != "" {
				para.CreateAttr("id", v.ID)
			}
			para.SetText(v.Text)
			for _, ref := range v.Refs {
				para.CreateElement("xref").CreateAttr("linkend", ref)
			}

		case *model.Figure:
			name := "figure"
			if v.Informal {
				name = "informalfigure"
			}
			fig := parent.CreateElement(name)
			if v.ID != "" {
				fig.CreateAttr("id", v.ID)
			}
			if v.Caption != "" {
				fig.CreateElement("title").SetText(v.Caption)
			}
			g := fig.CreateElement("graphic")
			g.CreateAttr("fileref", v.Src)

		case *model.Table:
			name := "table"
			if v.Informal {
				name = "informaltable"
			}
			tbl := parent.CreateElement(name)
			if v.ID != "" {
				tbl.CreateAttr("id", v.ID)
			}
			if v.Caption != "" {
				tbl.CreateElement("title").SetText(v.Caption)
			}
			if len(v.Header) > 0 {
				row := tbl.CreateElement("row")
				for _, cell := range v.Header {
					row.CreateElement("entry").SetText(cell)
				}
			}
			for _, cells := range v.Rows {
				row := tbl.CreateElement("row")
				for _, cell := range cells {
					row.CreateElement("entry").SetText(cell)
				}
			}

		case *model.List:
			name := "itemizedlist"
			if v.Ordered {
				name = "orderedlist"
			}
			list := parent.CreateElement(name)
			for _, item := range v.Items {
				list.CreateElement("listitem").SetText(item)
			}

		case *model.VariableList:
			list := parent.CreateElement("variablelist")
			for _, e := range v.Entries {
				entry := list.CreateElement("varlistentry")
				if e.ID != "" {
					entry.CreateAttr("id", e.ID)
				}
				entry.CreateElement("term").SetText(e.Term)
				entry.CreateElement("listitem").SetText(e.Definition)
			}
		}
	}
}

// Serialize renders a document with canonical two-space indentation.
// Serialization is deterministic so repeated transform/serialize cycles on
// compliant input produce byte-identical output.
func Serialize(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	return doc.WriteToBytes()
}
