package dtd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/tsawler/rittdoc/model"
)

func parseDoc(t *testing.T, src string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc
}

// A generic section nested 3 levels deep containing a generic variable-list
// becomes sect1 > sect2 > sect3 containing a glosslist, with zero remaining
// banned elements.
func TestTransform_NestedSectionsAndVariableList(t *testing.T) {
	src := `<chapter id="ch1"><title>T</title>
	<section><title>One</title>
	  <section><title>Two</title>
	    <section><title>Three</title>
	      <variablelist>
	        <varlistentry><term>API</term><listitem>Application interface</listitem></varlistentry>
	      </variablelist>
	    </section>
	  </section>
	</section>
	</chapter>`

	doc := parseDoc(t, src)
	if err := TransformChapter(doc); err != nil {
		t.Fatal(err)
	}

	out, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, banned := range []string{"<section", "<variablelist", "<varlistentry", "<term>", "<listitem"} {
		if bytes.Contains(out, []byte(banned)) {
			t.Errorf("banned element %s survived transform:\n%s", banned, out)
		}
	}
	for _, want := range []string{"<sect1", "<sect2", "<sect3", "<glosslist>", "<glossentry>", "<glossterm>", "<glossdef>"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("expected %s in output:\n%s", want, out)
		}
	}
}

func TestTransform_DepthBeyondFiveFails(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<chapter id="ch1"><title>T</title>`)
	for i := 0; i < 6; i++ {
		sb.WriteString(`<section><title>S</title>`)
	}
	sb.WriteString(`<para>deep</para>`)
	for i := 0; i < 6; i++ {
		sb.WriteString(`</section>`)
	}
	sb.WriteString(`</chapter>`)

	doc := parseDoc(t, sb.String())
	err := TransformChapter(doc)
	if !errors.Is(err, ErrSectionTooDeep) {
		t.Errorf("err = %v, want ErrSectionTooDeep", err)
	}
}

func TestTransform_WrapsLooseChapterContent(t *testing.T) {
	src := `<chapter id="ch1"><title>T</title>
	<para>loose leading paragraph</para>
	<informalfigure><graphic fileref="img.png"/></informalfigure>
	<section><title>Real Section</title><para>body</para></section>
	</chapter>`

	doc := parseDoc(t, src)
	if err := TransformChapter(doc); err != nil {
		t.Fatal(err)
	}

	root := doc.Root()
	var childTags []string
	for _, el := range root.ChildElements() {
		childTags = append(childTags, el.Tag)
	}
	want := []string{"title", "sect1", "sect1"}
	if len(childTags) != len(want) {
		t.Fatalf("chapter children = %v, want %v", childTags, want)
	}
	for i := range want {
		if childTags[i] != want[i] {
			t.Fatalf("chapter children = %v, want %v", childTags, want)
		}
	}

	// The wrapper is the first section and holds the loose content in
	// original order; the informal figure was normalized on the way.
	wrapper := root.ChildElements()[1]
	tags := []string{}
	for _, el := range wrapper.ChildElements() {
		tags = append(tags, el.Tag)
	}
	if len(tags) != 3 || tags[0] != "title" || tags[1] != "para" || tags[2] != "figure" {
		t.Errorf("wrapper children = %v", tags)
	}
}

func TestTransform_NamespacesIDsAndLinkends(t *testing.T) {
	src := `<chapter id="ch2"><title>T</title>
	<section id="introduction"><title>Intro</title>
	<para id="p1">See <xref linkend="introduction"/>.</para>
	</section>
	</chapter>`

	doc := parseDoc(t, src)
	if err := TransformChapter(doc); err != nil {
		t.Fatal(err)
	}

	sec := doc.Root().FindElement("//sect1")
	if got := sec.SelectAttrValue("id", ""); got != "ch2-introduction" {
		t.Errorf("section id = %q, want ch2-introduction", got)
	}
	xref := doc.Root().FindElement("//xref")
	if got := xref.SelectAttrValue("linkend", ""); got != "ch2-introduction" {
		t.Errorf("linkend = %q, want ch2-introduction", got)
	}
	// The chapter's own id is the namespace, not a target of it.
	if got := doc.Root().SelectAttrValue("id", ""); got != "ch2" {
		t.Errorf("chapter id = %q, want ch2", got)
	}
}

func TestTransform_CrossChapterLinkendKept(t *testing.T) {
	src := `<chapter id="ch2"><title>T</title>
	<section id="intro"><title>Intro</title>
	<para>See <xref linkend="ch5-details"/> and <xref linkend="ch5"/>.</para>
	</section>
	</chapter>`

	doc := parseDoc(t, src)
	if err := TransformChapter(doc); err != nil {
		t.Fatal(err)
	}

	xrefs := doc.Root().FindElements("//xref")
	if len(xrefs) != 2 {
		t.Fatalf("xrefs = %d, want 2", len(xrefs))
	}
	if got := xrefs[0].SelectAttrValue("linkend", ""); got != "ch5-details" {
		t.Errorf("cross-chapter linkend = %q, want ch5-details", got)
	}
	if got := xrefs[1].SelectAttrValue("linkend", ""); got != "ch5" {
		t.Errorf("chapter linkend = %q, want ch5", got)
	}
}

// Applying the transformer twice yields a byte-identical result to applying
// it once.
func TestTransform_Idempotent(t *testing.T) {
	ch := &model.Chapter{
		ID:    "ch1",
		Title: "Idempotency",
		Blocks: []model.Block{
			&model.Para{ID: "lead", Text: "Loose lead-in."},
			&model.Section{
				ID:    "outer",
				Title: "Outer",
				Blocks: []model.Block{
					&model.Para{Text: "Body.", Refs: []string{"outer"}},
					&model.Section{
						Title: "Inner",
						Blocks: []model.Block{
							&model.VariableList{Entries: []model.TermDef{{Term: "DTD", Definition: "Grammar"}}},
							&model.Figure{Src: "images/a.png", Informal: true},
						},
					},
				},
			},
		},
	}

	doc := EmitChapter(ch)
	if err := TransformChapter(doc); err != nil {
		t.Fatal(err)
	}
	once, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}

	doc2 := etree.NewDocument()
	if err := doc2.ReadFromBytes(once); err != nil {
		t.Fatal(err)
	}
	if err := TransformChapter(doc2); err != nil {
		t.Fatal(err)
	}
	twice, err := Serialize(doc2)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(once, twice) {
		t.Errorf("transform is not idempotent:\n--- once ---\n%s\n--- twice ---\n%s", once, twice)
	}
}

func TestFillMetaPlaceholders(t *testing.T) {
	meta := FillMetaPlaceholders(model.BookMeta{Title: "Real Title"})
	if meta.Title != "Real Title" {
		t.Errorf("existing title overwritten: %q", meta.Title)
	}
	if meta.ISBN == "" || meta.Publisher == "" || meta.CopyrightYear == "" || len(meta.Authors) == 0 {
		t.Errorf("placeholders not populated: %+v", meta)
	}
}
