package dtd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeChapter(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("")
	if err != nil {
		t.Fatal(err)
	}
	return v
}

const validChapter = `<?xml version="1.0" encoding="UTF-8"?>
<chapter id="ch1">
  <title>Valid Chapter</title>
  <sect1 id="ch1-intro">
    <title>Introduction</title>
    <para id="ch1-p1">Hello <xref linkend="ch1-intro"/> world.</para>
    <figure>
      <graphic fileref="media/img-1.png" format="raster"/>
    </figure>
  </sect1>
</chapter>
`

func TestValidateFile_Valid(t *testing.T) {
	v := newTestValidator(t)
	path := writeChapter(t, t.TempDir(), "ch1.xml", validChapter)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("valid chapter produced findings: %+v", findings)
	}
}

func TestValidateFile_UndeclaredElement(t *testing.T) {
	v := newTestValidator(t)
	src := `<chapter id="ch1"><title>T</title>
<sect1><title>S</title><blink>nope</blink></sect1>
</chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, f := range findings {
		if f.Category == CategoryUndeclaredElement {
			found = true
			if f.Line != 2 {
				t.Errorf("undeclared element reported at line %d, want 2", f.Line)
			}
		}
	}
	if !found {
		t.Errorf("no undeclared-element finding: %+v", findings)
	}
}

func TestValidateFile_MissingRequiredAttribute(t *testing.T) {
	v := newTestValidator(t)
	src := `<chapter><title>T</title></chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !hasCategory(findings, CategoryMissingRequiredAttribute) {
		t.Errorf("missing chapter id not reported: %+v", findings)
	}
}

func TestValidateFile_MissingRequiredChild(t *testing.T) {
	v := newTestValidator(t)
	src := `<chapter id="ch1"><title>T</title>
<sect1><para>No title in this section.</para></sect1>
</chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !hasCategory(findings, CategoryMissingRequiredChild) {
		t.Errorf("missing required <title> not reported: %+v", findings)
	}
}

func TestValidateFile_InvalidContentModel(t *testing.T) {
	v := newTestValidator(t)
	// sect1 before title violates the chapter's child order.
	src := `<chapter id="ch1"><sect1><title>S</title></sect1><title>T</title></chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !hasCategory(findings, CategoryInvalidContentModel) {
		t.Errorf("out-of-order children not reported: %+v", findings)
	}
}

func TestValidateFile_InvalidAttributeValue(t *testing.T) {
	v := newTestValidator(t)
	src := `<chapter id="ch1"><title>T</title>
<sect1><title>S</title>
<figure><graphic fileref="x.png" format="hologram"/></figure>
</sect1>
</chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !hasCategory(findings, CategoryInvalidAttributeValue) {
		t.Errorf("enumeration violation not reported: %+v", findings)
	}
}

func TestValidateFile_DanglingIntraChapterLinkend(t *testing.T) {
	v := newTestValidator(t)
	src := `<chapter id="ch1"><title>T</title>
<sect1><title>S</title>
<para>See <xref linkend="ch1-nowhere"/>.</para>
</sect1>
</chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !hasCategory(findings, CategoryInvalidAttributeValue) {
		t.Errorf("dangling intra-chapter linkend not reported: %+v", findings)
	}
}

func TestValidateFile_CrossChapterLinkendIgnored(t *testing.T) {
	v := newTestValidator(t)
	// A linkend into another chapter is resolved at package level, not here.
	src := `<chapter id="ch1"><title>T</title>
<sect1><title>S</title>
<para>See <xref linkend="ch2-elsewhere"/>.</para>
</sect1>
</chapter>`
	path := writeChapter(t, t.TempDir(), "ch1.xml", src)

	findings, err := v.ValidateFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("cross-chapter linkend wrongly reported: %+v", findings)
	}
}

func TestValidateFile_NotWellFormed(t *testing.T) {
	v := newTestValidator(t)
	path := writeChapter(t, t.TempDir(), "bad.xml", `<chapter id="x"><title>unclosed`)

	if _, err := v.ValidateFile(path); err == nil {
		t.Error("malformed XML should be an error, not findings")
	}
}

func TestValidatorHonesty(t *testing.T) {
	// A validator without a usable schema must refuse to construct rather
	// than silently pass everything.
	if _, err := NewValidator("/nonexistent/rittdoc.dtd"); err == nil {
		t.Error("expected construction failure for missing schema")
	}
}

func TestValidateChapters_MergedInOrder(t *testing.T) {
	v := newTestValidator(t)
	dir := t.TempDir()
	good := writeChapter(t, dir, "ch1.xml", validChapter)
	bad := writeChapter(t, dir, "ch2.xml", `<chapter id="ch2"><title>T</title><bogus/></chapter>`)

	pass, findings, err := v.ValidateChapters([]string{good, bad})
	if err != nil {
		t.Fatal(err)
	}
	if pass {
		t.Error("expected fail with findings present")
	}
	if len(findings) == 0 {
		t.Fatal("expected findings from second chapter")
	}
	for _, f := range findings {
		if f.File != bad {
			t.Errorf("finding attributed to %s, want %s", f.File, bad)
		}
	}
}

func hasCategory(findings []Finding, cat Category) bool {
	for _, f := range findings {
		if f.Category == cat {
			return true
		}
	}
	return false
}
