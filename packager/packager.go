// Package packager assembles the final output archive: one XML file per
// chapter, the book descriptor, extracted media under final names, and
// the schema itself so the archive validates offline.
//
// Packaging works through a staging directory that is preserved next to
// the archive; validation and the audit artifacts operate on the staged
// files.
package packager

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/tsawler/rittdoc/dtd"
	"github.com/tsawler/rittdoc/model"
	"github.com/tsawler/rittdoc/refmap"
)

// ErrNoChapters is returned when packaging is attempted with no chapters.
var ErrNoChapters = errors.New("packager: no chapters to package")

// SchemaFileName is the name the DTD is stored under inside the archive.
const SchemaFileName = "rittdoc.dtd"

// DescriptorFileName is the name of the top-level book descriptor.
const DescriptorFileName = "rittdoc.xml"

// Media supplies the bytes of source-relative resource paths, typically
// backed by the opened source archive. A nil Media is valid for sources
// without extractable media.
type Media interface {
	ReadFile(name string) ([]byte, error)
}

// ChapterDoc pairs a chapter identifier with its transformed XML
// document, ready for final naming and serialization.
type ChapterDoc struct {
	ID  string
	Doc *etree.Document
}

// Config holds packaging options.
type Config struct {
	// ArchiveStem names the staging directory and the archive file
	// (stem + ".zip").
	ArchiveStem string
}

// DefaultConfig returns the default packaging configuration.
func DefaultConfig() Config {
	return Config{ArchiveStem: "book"}
}

// Result describes the produced output.
type Result struct {
	// ArchivePath is the path of the written zip archive.
	ArchivePath string

	// StageDir is the staging directory the archive was built from. It
	// is preserved for validation and operator inspection.
	StageDir string

	// ChapterFiles are the staged chapter XML paths in document order.
	ChapterFiles []string
}

// Packager writes staged output and the final archive for one job.
type Packager struct {
	config Config
	mapper *refmap.Mapper
	log    *zap.Logger
}

// New creates a Packager with default configuration.
func New(mapper *refmap.Mapper, log *zap.Logger) *Packager {
	return NewWithConfig(mapper, log, DefaultConfig())
}

// NewWithConfig creates a Packager with the given configuration.
func NewWithConfig(mapper *refmap.Mapper, log *zap.Logger, config Config) *Packager {
	if log == nil {
		log = zap.NewNop()
	}
	if config.ArchiveStem == "" {
		config.ArchiveStem = DefaultConfig().ArchiveStem
	}
	return &Packager{config: config, mapper: mapper, log: log}
}

// Package stages and archives the document. It finalizes every mapped
// resource, rewrites graphic references inside the chapters to the final
// media names, writes chapters, descriptor, media and schema to the
// staging directory, and zips the staged tree.
//
// All images are retained: every registered image is copied into the
// archive regardless of how many chapters survived.
func (p *Packager) Package(outDir string, meta model.BookMeta, chapters []ChapterDoc, media Media) (*Result, error) {
	if len(chapters) == 0 {
		return nil, ErrNoChapters
	}

	stage := filepath.Join(outDir, p.config.ArchiveStem)
	if err := os.MkdirAll(filepath.Join(stage, "media"), 0o755); err != nil {
		return nil, fmt.Errorf("packager: creating staging directory: %w", err)
	}

	if err := p.finalizeResources(stage, media); err != nil {
		return nil, err
	}

	res := &Result{StageDir: stage}
	for _, ch := range chapters {
		p.rewriteGraphics(ch.Doc)
		name := ch.ID + ".xml"
		data, err := dtd.Serialize(ch.Doc)
		if err != nil {
			return nil, fmt.Errorf("packager: serializing chapter %s: %w", ch.ID, err)
		}
		full := filepath.Join(stage, name)
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return nil, fmt.Errorf("packager: writing chapter %s: %w", ch.ID, err)
		}
		res.ChapterFiles = append(res.ChapterFiles, full)
	}

	if err := p.writeDescriptor(stage, meta, chapters); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(stage, SchemaFileName), dtd.SchemaBytes(), 0o644); err != nil {
		return nil, fmt.Errorf("packager: writing schema: %w", err)
	}

	archive := filepath.Join(outDir, p.config.ArchiveStem+".zip")
	if err := zipTree(archive, stage); err != nil {
		return nil, err
	}
	res.ArchivePath = archive

	p.log.Info("archive written",
		zap.String("path", archive),
		zap.Int("chapters", len(chapters)))
	return res, nil
}

// finalizeResources assigns final names to every mapped resource and
// copies image bytes into the staged media directory. Images become
// media/<intermediate name>; link targets become <owning chapter
// file>#<intermediate name>.
func (p *Packager) finalizeResources(stage string, media Media) error {
	for _, res := range p.mapper.Resources() {
		switch res.Kind {
		case refmap.KindImage:
			final := "media/" + res.IntermediateName
			if err := p.mapper.Finalize(res.OriginalPath, final); err != nil {
				return fmt.Errorf("packager: %w", err)
			}
			p.copyMedia(stage, res.OriginalPath, final, media)
		case refmap.KindLink:
			owner, _, _ := strings.Cut(res.IntermediateName, "-")
			final := owner + ".xml#" + res.IntermediateName
			if err := p.mapper.Finalize(res.OriginalPath, final); err != nil {
				return fmt.Errorf("packager: %w", err)
			}
		}
	}
	return nil
}

// copyMedia writes one image into the staged tree. A missing or
// unreadable source is not fatal here; resource validation reports the
// absent final file.
func (p *Packager) copyMedia(stage, originalPath, finalName string, media Media) {
	if media == nil {
		return
	}
	data, err := media.ReadFile(originalPath)
	if err != nil {
		p.log.Warn("media source unreadable",
			zap.String("path", originalPath),
			zap.Error(err))
		return
	}
	full := filepath.Join(stage, filepath.FromSlash(finalName))
	if err := os.WriteFile(full, data, 0o644); err != nil {
		p.log.Warn("media write failed",
			zap.String("path", full),
			zap.Error(err))
	}
}

// rewriteGraphics replaces graphic filerefs that still carry source
// paths with the final media names, and stamps the format attribute from
// the resource geometry.
func (p *Packager) rewriteGraphics(doc *etree.Document) {
	for _, g := range doc.FindElements("//graphic") {
		ref := g.SelectAttrValue("fileref", "")
		if ref == "" {
			continue
		}
		res, ok := p.mapper.Lookup(ref)
		if !ok || res.FinalName == "" {
			continue
		}
		g.CreateAttr("fileref", res.FinalName)
		if res.Geometry.Vector {
			g.CreateAttr("format", "vector")
		}
	}
}

// writeDescriptor emits the top-level rittdoc document: the filled book
// metadata plus one chapterref per chapter, in document order.
func (p *Packager) writeDescriptor(stage string, meta model.BookMeta, chapters []ChapterDoc) error {
	meta = dtd.FillMetaPlaceholders(meta)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	// The schema sits beside the descriptor in the staged tree, so the
	// doctype points at it by file name and the archive validates offline.
	doc.CreateDirective(`DOCTYPE rittdoc SYSTEM "` + SchemaFileName + `"`)
	root := doc.CreateElement("rittdoc")

	info := root.CreateElement("bookinfo")
	info.CreateElement("title").SetText(meta.Title)
	info.CreateElement("isbn").SetText(meta.ISBN)
	for _, a := range meta.Authors {
		info.CreateElement("author").SetText(a)
	}
	info.CreateElement("publisher").SetText(meta.Publisher)
	info.CreateElement("copyright").SetText(meta.CopyrightYear)

	for _, ch := range chapters {
		root.CreateElement("chapterref").CreateAttr("href", ch.ID+".xml")
	}

	data, err := dtd.Serialize(doc)
	if err != nil {
		return fmt.Errorf("packager: serializing descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stage, DescriptorFileName), data, 0o644); err != nil {
		return fmt.Errorf("packager: writing descriptor: %w", err)
	}
	return nil
}

// zipTree writes every file under root into a zip archive, with paths
// relative to root. Entries are sorted for deterministic output.
func zipTree(archivePath, root string) error {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("packager: walking staged tree: %w", err)
	}
	sort.Strings(files)

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("packager: creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, file := range files {
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(file)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, src)
		src.Close()
		if err != nil {
			return fmt.Errorf("packager: archiving %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("packager: closing archive: %w", err)
	}
	return nil
}
