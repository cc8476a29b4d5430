package packager

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"

	"github.com/tsawler/rittdoc/dtd"
	"github.com/tsawler/rittdoc/model"
	"github.com/tsawler/rittdoc/refmap"
)

type mediaMap map[string][]byte

func (m mediaMap) ReadFile(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func transformedChapter(t *testing.T, ch *model.Chapter) ChapterDoc {
	t.Helper()
	doc := dtd.EmitChapter(ch)
	if err := dtd.TransformChapter(doc); err != nil {
		t.Fatal(err)
	}
	return ChapterDoc{ID: ch.ID, Doc: doc}
}

func TestPackage_StagesAndArchives(t *testing.T) {
	mapper := refmap.NewMapper()
	if err := mapper.Register("src/fig.png", "img-0001.png", refmap.KindImage, refmap.Geometry{Width: 4, Height: 4}); err != nil {
		t.Fatal(err)
	}
	mapper.RecordReference("src/fig.png", "ch1")

	ch := &model.Chapter{
		ID:    "ch1",
		Title: "Opening",
		Blocks: []model.Block{
			&model.Para{ID: "p1", Text: "Hello."},
			&model.Figure{Src: "src/fig.png", Informal: true},
		},
	}

	outDir := t.TempDir()
	p := New(mapper, nil)
	res, err := p.Package(outDir, model.BookMeta{Title: "A Book"}, []ChapterDoc{transformedChapter(t, ch)}, mediaMap{
		"src/fig.png": []byte("png-bytes"),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"ch1.xml", DescriptorFileName, SchemaFileName, filepath.Join("media", "img-0001.png")} {
		if _, err := os.Stat(filepath.Join(res.StageDir, name)); err != nil {
			t.Errorf("staged file %s: %v", name, err)
		}
	}
	if _, err := os.Stat(res.ArchivePath); err != nil {
		t.Fatalf("archive: %v", err)
	}

	// The chapter's graphic now points at the final media name.
	data, err := os.ReadFile(res.ChapterFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `fileref="media/img-0001.png"`) {
		t.Errorf("graphic not rewritten:\n%s", data)
	}
	if !strings.Contains(string(data), `<!DOCTYPE chapter SYSTEM "rittdoc.dtd">`) {
		t.Errorf("chapter doctype missing:\n%s", data)
	}

	if ok, problems := mapper.Validate(res.StageDir); !ok {
		t.Errorf("resource validation problems: %v", problems)
	}
}

func TestPackage_DescriptorContents(t *testing.T) {
	mapper := refmap.NewMapper()
	chapters := []ChapterDoc{
		transformedChapter(t, &model.Chapter{ID: "ch1", Title: "One"}),
		transformedChapter(t, &model.Chapter{ID: "ch2", Title: "Two"}),
	}

	outDir := t.TempDir()
	p := New(mapper, nil)
	res, err := p.Package(outDir, model.BookMeta{Title: "A Book", Authors: []string{"B. Writer"}}, chapters, nil)
	if err != nil {
		t.Fatal(err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(filepath.Join(res.StageDir, DescriptorFileName)); err != nil {
		t.Fatal(err)
	}
	if got := doc.FindElement("//bookinfo/title").Text(); got != "A Book" {
		t.Errorf("title = %q", got)
	}
	// Absent metadata fields arrive as explicit placeholders.
	if got := doc.FindElement("//bookinfo/publisher").Text(); got != "Unknown Publisher" {
		t.Errorf("publisher = %q", got)
	}
	refs := doc.FindElements("//chapterref")
	if len(refs) != 2 {
		t.Fatalf("chapterrefs = %d, want 2", len(refs))
	}
	if got := refs[0].SelectAttrValue("href", ""); got != "ch1.xml" {
		t.Errorf("first href = %q", got)
	}
	if got := refs[1].SelectAttrValue("href", ""); got != "ch2.xml" {
		t.Errorf("second href = %q", got)
	}

	// The descriptor declares the schema it ships with, by relative path.
	raw, err := os.ReadFile(filepath.Join(res.StageDir, DescriptorFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `<!DOCTYPE rittdoc SYSTEM "rittdoc.dtd">`) {
		t.Errorf("descriptor doctype missing:\n%s", raw)
	}
}

func TestPackage_LinkTargetsFinalizeToChapterFiles(t *testing.T) {
	mapper := refmap.NewMapper()
	if err := mapper.Register("src/b.xhtml#details", "ch2-details", refmap.KindLink, refmap.Geometry{}); err != nil {
		t.Fatal(err)
	}
	mapper.RecordReference("src/b.xhtml#details", "ch1")

	chapters := []ChapterDoc{
		transformedChapter(t, &model.Chapter{ID: "ch1", Title: "One"}),
		transformedChapter(t, &model.Chapter{ID: "ch2", Title: "Two"}),
	}

	outDir := t.TempDir()
	res, err := New(mapper, nil).Package(outDir, model.BookMeta{}, chapters, nil)
	if err != nil {
		t.Fatal(err)
	}

	target, ok := mapper.Lookup("src/b.xhtml#details")
	if !ok {
		t.Fatal("resource lost")
	}
	if target.FinalName != "ch2.xml#ch2-details" {
		t.Errorf("final name = %q, want ch2.xml#ch2-details", target.FinalName)
	}
	// Validation checks only the file part of the fragment reference.
	if ok, problems := mapper.Validate(res.StageDir); !ok {
		t.Errorf("problems = %v", problems)
	}
}

func TestPackage_VectorGraphicFormat(t *testing.T) {
	mapper := refmap.NewMapper()
	if err := mapper.Register("src/diagram.svg", "img-0001.svg", refmap.KindImage, refmap.Geometry{Vector: true}); err != nil {
		t.Fatal(err)
	}

	ch := &model.Chapter{
		ID:     "ch1",
		Title:  "Diagrams",
		Blocks: []model.Block{&model.Figure{Src: "src/diagram.svg", Caption: "Overview"}},
	}

	outDir := t.TempDir()
	res, err := New(mapper, nil).Package(outDir, model.BookMeta{}, []ChapterDoc{transformedChapter(t, ch)}, mediaMap{
		"src/diagram.svg": []byte("<svg/>"),
	})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(res.ChapterFiles[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `format="vector"`) {
		t.Errorf("vector format not stamped:\n%s", data)
	}
}

func TestPackage_NoChapters(t *testing.T) {
	_, err := New(refmap.NewMapper(), nil).Package(t.TempDir(), model.BookMeta{}, nil, nil)
	if !errors.Is(err, ErrNoChapters) {
		t.Errorf("err = %v, want ErrNoChapters", err)
	}
}

func TestPackage_ArchiveListsStagedTree(t *testing.T) {
	mapper := refmap.NewMapper()
	outDir := t.TempDir()
	res, err := New(mapper, nil).Package(outDir, model.BookMeta{},
		[]ChapterDoc{transformedChapter(t, &model.Chapter{ID: "ch1", Title: "Only"})}, nil)
	if err != nil {
		t.Fatal(err)
	}

	zr, err := zip.OpenReader(res.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"ch1.xml", DescriptorFileName, SchemaFileName} {
		if !names[want] {
			t.Errorf("archive missing %s (have %v)", want, names)
		}
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	err := WriteReport(path, Report{Status: "success", Chapters: 2, Problems: []string{"spine document gone.xhtml dropped"}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "success" || got.Chapters != 2 {
		t.Errorf("report = %+v", got)
	}
	// Conversion problems are part of the durable record.
	if len(got.Problems) != 1 || !strings.Contains(got.Problems[0], "gone.xhtml") {
		t.Errorf("problems = %v", got.Problems)
	}
	// Empty slices are written explicitly, not as null.
	for _, want := range []string{`"findings": []`, `"resource_problems": []`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("%s not materialized:\n%s", want, data)
		}
	}
}
