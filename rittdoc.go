// Package rittdoc converts PDF and EPUB sources into chapterized,
// schema-valid XML archives.
//
// Basic usage:
//
//	result, err := rittdoc.Convert(ctx, "book.epub", "out")
//	if err != nil {
//	    // handle error
//	}
//	fmt.Println(result.Status, result.ArchivePath)
//
// A conversion structures the source into chapters, rewrites the
// chapters to satisfy the RittDoc DTD, packages them with their media
// into a zip archive, and validates every packaged chapter. The refmap
// export and the validation report are written next to the archive for
// every job, including failed ones.
package rittdoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/tsawler/rittdoc/dtd"
	"github.com/tsawler/rittdoc/epubdoc"
	"github.com/tsawler/rittdoc/extract"
	"github.com/tsawler/rittdoc/format"
	"github.com/tsawler/rittdoc/layout"
	"github.com/tsawler/rittdoc/model"
	"github.com/tsawler/rittdoc/ocr"
	"github.com/tsawler/rittdoc/packager"
	"github.com/tsawler/rittdoc/refmap"
)

// ErrNoContent is returned when a source yields no chapters at all.
var ErrNoContent = errors.New("rittdoc: source produced no chapters")

// Status is the overall outcome of a conversion.
type Status string

const (
	// StatusSuccess means every chapter converted and validated clean.
	StatusSuccess Status = "success"
	// StatusWarnings means an archive was produced but some chapters or
	// resources have recorded problems.
	StatusWarnings Status = "success-with-warnings"
	// StatusFailed means no usable archive was produced, or the produced
	// chapters do not satisfy the schema.
	StatusFailed Status = "failed"
)

// Result describes one finished conversion.
type Result struct {
	Status      Status
	ArchivePath string
	StageDir    string
	Chapters    int

	// Problems are non-fatal conversion problems (failed chapters,
	// unreadable pages, disabled OCR).
	Problems []string

	// ResourceProblems are unresolved or missing mapped resources.
	ResourceProblems []refmap.Problem

	// Findings are schema-validation findings over the packaged chapters.
	Findings []dtd.Finding

	// ReportPath and RefMapPath locate the audit artifacts.
	ReportPath string
	RefMapPath string
}

// Convert converts the source document at sourcePath into a packaged
// archive under outDir. The source format is detected from the file
// extension. Per-chapter failures do not abort the conversion; they are
// recorded on the Result and in the on-disk report.
func Convert(ctx context.Context, sourcePath, outDir string, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &converter{
		opts:   o,
		log:    o.logger,
		mapper: refmap.NewMapper(),
		result: &Result{Status: StatusFailed},
	}
	return c.run(ctx, sourcePath, outDir)
}

type converter struct {
	opts   options
	log    *zap.Logger
	mapper *refmap.Mapper
	result *Result

	ocrClient   *ocr.Client
	ocrDisabled bool
}

func (c *converter) problemf(msg string, args ...any) {
	msg = fmt.Sprintf(msg, args...)
	c.log.Warn(msg)
	c.result.Problems = append(c.result.Problems, msg)
}

func (c *converter) run(ctx context.Context, sourcePath, outDir string) (*Result, error) {
	res := c.result

	// Validator honesty: a missing or unparsable schema fails the job
	// before any work happens, never silently skips validation.
	validator, err := dtd.NewValidator(c.opts.dtdPath)
	if err != nil {
		return res, err
	}

	f, err := format.Detect(sourcePath)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("rittdoc: creating output directory: %w", err)
	}
	defer c.writeArtifacts(outDir)
	defer c.closeOCR()

	// Extension decides the format; the magic bytes only cross-check it.
	// A mismatch is a recorded warning, never a reinterpretation.
	if head, err := readHead(sourcePath, 8); err != nil {
		return res, fmt.Errorf("%w: %v", extract.ErrUnreadableSource, err)
	} else if !format.MatchesMagic(f, head) {
		c.problemf("file extension says %s but the content does not look like %s", f, f)
	}

	c.log.Info("conversion started",
		zap.String("source", sourcePath),
		zap.String("format", f.String()),
		zap.String("out", outDir))

	var doc *model.StructuredDocument
	var media packager.Media
	switch f {
	case format.PDF:
		doc, err = c.structurePDF(ctx, sourcePath)
	case format.EPUB:
		doc, media, err = c.structureEPUB(sourcePath)
	}
	if err != nil {
		return res, err
	}
	if closer, ok := media.(io.Closer); ok {
		defer closer.Close()
	}
	doc.Meta = mergeMeta(doc.Meta, c.opts.meta)

	chapters := c.transformChapters(doc)
	res.Chapters = len(chapters)
	if len(chapters) == 0 {
		return res, ErrNoContent
	}

	pkg := packager.NewWithConfig(c.mapper, c.log, packager.Config{ArchiveStem: c.opts.archiveStem})
	out, err := pkg.Package(outDir, doc.Meta, chapters, media)
	if err != nil {
		return res, err
	}
	res.ArchivePath = out.ArchivePath
	res.StageDir = out.StageDir

	pass, findings, err := validator.ValidateChapters(out.ChapterFiles)
	if err != nil {
		return res, err
	}
	res.Findings = findings

	_, res.ResourceProblems = c.mapper.Validate(out.StageDir)

	switch {
	case !pass:
		res.Status = StatusFailed
	case len(res.Problems) > 0 || len(findings) > 0 || len(res.ResourceProblems) > 0:
		res.Status = StatusWarnings
	default:
		res.Status = StatusSuccess
	}

	c.log.Info("conversion finished",
		zap.String("status", string(res.Status)),
		zap.Int("chapters", res.Chapters),
		zap.Int("findings", len(res.Findings)),
		zap.Int("problems", len(res.Problems)))
	return res, nil
}

// transformChapters emits each structured chapter as XML and rewrites it
// to schema compliance. A chapter whose transform fails is dropped and
// recorded; its resource references remain in the map so shared assets
// referenced by surviving chapters are still packaged.
func (c *converter) transformChapters(doc *model.StructuredDocument) []packager.ChapterDoc {
	var out []packager.ChapterDoc
	for _, ch := range doc.Chapters {
		xdoc := dtd.EmitChapter(ch)
		if err := dtd.TransformChapter(xdoc); err != nil {
			c.problemf("chapter %s (%s) dropped: %v", ch.ID, ch.Title, err)
			continue
		}
		out = append(out, packager.ChapterDoc{ID: ch.ID, Doc: xdoc})
	}
	return out
}

// structurePDF runs the layout pipeline: per-page reading order, flow
// building, chapter segmentation and title extraction.
func (c *converter) structurePDF(ctx context.Context, path string) (*model.StructuredDocument, error) {
	provider, err := extract.OpenPDF(path)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	var pages []layout.PageRuns
	pageHeights := make(map[int]float64)

	for n := 1; n <= provider.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runs, w, h, err := provider.Page(n)
		if err != nil {
			c.problemf("page %d unreadable: %v", n, err)
			continue
		}
		if len(runs) == 0 {
			runs = c.ocrPage(n, w, h)
		}
		pageHeights[n] = h
		pages = append(pages, layout.PageRuns{Page: n, Width: w, Height: h, Runs: runs})
	}

	c.orderPages(pages)

	paragraphs := layout.NewFlowBuilderWithConfig(c.opts.flow).Build(pages)
	groups := layout.NewChapterSegmenterWithConfig(c.opts.chapters).Segment(paragraphs, pageHeights)
	titler := layout.NewTitleExtractorWithConfig(c.opts.title)

	doc := model.NewStructuredDocument()
	for i, group := range groups {
		title := titler.Extract(group)
		ch := &model.Chapter{
			ID:    fmt.Sprintf("ch%d", i+1),
			Title: title.Text,
		}
		if len(group) > 0 {
			ch.SourcePage = group[0].Page
		}
		ch.Blocks = paragraphBlocks(group)
		doc.AddChapter(ch)
		c.log.Debug("chapter segmented",
			zap.String("id", ch.ID),
			zap.String("title", ch.Title),
			zap.Int("page", ch.SourcePage),
			zap.Int("paragraphs", len(group)))
	}
	return doc, nil
}

// orderPages establishes reading order on each page. Pages are
// independent, so the work fans out over a bounded pool.
func (c *converter) orderPages(pages []layout.PageRuns) {
	workers := runtime.NumCPU()
	if workers > len(pages) {
		workers = len(pages)
	}
	if workers < 1 {
		return
	}

	orderer := layout.NewReadingOrdererWithConfig(c.opts.grid)
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := range pages {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *layout.PageRuns) {
			defer wg.Done()
			defer func() { <-sem }()
			p.Runs = orderer.Order(p.Runs, p.Width, p.Height)
		}(&pages[i])
	}
	wg.Wait()
}

// readHead reads up to n leading bytes of a file.
func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	head := make([]byte, n)
	read, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return head[:read], nil
}

// paragraphBlocks converts flowed paragraphs into chapter blocks.
// Title paragraphs are consumed by title extraction; heading candidates
// open a section that collects the paragraphs after them.
func paragraphBlocks(group []model.Paragraph) []model.Block {
	var blocks []model.Block
	var current *model.Section
	seq := 0

	appendBlock := func(b model.Block) {
		if current != nil {
			current.Blocks = append(current.Blocks, b)
			return
		}
		blocks = append(blocks, b)
	}

	for _, p := range group {
		switch p.Role {
		case model.RoleTitle:
			continue
		case model.RoleHeadingCandidate:
			current = &model.Section{Title: p.Text()}
			blocks = append(blocks, current)
		default:
			seq++
			appendBlock(&model.Para{
				ID:   fmt.Sprintf("p%d", seq),
				Text: p.Text(),
				Page: p.Page,
				Role: p.Role,
			})
		}
	}
	return blocks
}

// structureEPUB maps each linear spine document to one chapter.
func (c *converter) structureEPUB(path string) (*model.StructuredDocument, packager.Media, error) {
	reader, err := epubdoc.Open(path)
	if err != nil {
		return nil, nil, err
	}
	// The reader stays open: the packager reads media bytes from it.
	proc := epubdoc.NewProcessor(c.mapper, c.log)
	doc, failures, err := proc.Document(reader)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	for _, f := range failures {
		c.problemf("spine document %s (index %d) failed: %v", f.Href, f.Index, f.Err)
	}
	return doc, reader, nil
}

// ocrPage recovers text for a page that produced no runs. It returns nil
// when OCR is not configured, not compiled in, or the page image is
// absent; the page then contributes nothing and is reported.
func (c *converter) ocrPage(n int, w, h float64) []model.TextRun {
	if c.opts.pageImageDir == "" {
		c.problemf("page %d has no extractable text", n)
		return nil
	}
	if c.ocrDisabled {
		return nil
	}
	if c.ocrClient == nil {
		client, err := ocr.New()
		if err != nil {
			c.ocrDisabled = true
			c.problemf("page %d has no extractable text and OCR is unavailable: %v", n, err)
			return nil
		}
		if c.opts.ocrLanguage != "" {
			if err := client.SetLanguage(c.opts.ocrLanguage); err != nil {
				c.log.Warn("setting OCR language", zap.Error(err))
			}
		}
		c.ocrClient = client
	}

	imgPath := filepath.Join(c.opts.pageImageDir, fmt.Sprintf("page-%d.png", n))
	data, err := os.ReadFile(imgPath)
	if err != nil {
		c.problemf("page %d has no extractable text and no page image at %s", n, imgPath)
		return nil
	}
	text, err := c.ocrClient.Recognize(data)
	if err != nil || text == "" {
		c.problemf("page %d OCR produced no text: %v", n, err)
		return nil
	}
	c.log.Info("page recovered via OCR", zap.Int("page", n), zap.Int("chars", len(text)))
	return []model.TextRun{{
		Text:     text,
		BBox:     model.BBox{X: 0, Y: 0, Width: w, Height: h},
		Page:     n,
		FontSize: 10,
	}}
}

func (c *converter) closeOCR() {
	if c.ocrClient != nil {
		c.ocrClient.Close()
		c.ocrClient = nil
	}
}

// writeArtifacts writes the refmap export and the validation report.
// Both are written for every job that got past source detection.
func (c *converter) writeArtifacts(outDir string) {
	res := c.result
	stem := c.opts.archiveStem

	res.RefMapPath = filepath.Join(outDir, stem+".refmap.json")
	if err := c.mapper.Export(res.RefMapPath); err != nil {
		c.log.Warn("refmap export failed", zap.Error(err))
		res.RefMapPath = ""
	}

	res.ReportPath = filepath.Join(outDir, stem+".report.json")
	report := packager.Report{
		Status:           string(res.Status),
		Archive:          res.ArchivePath,
		Chapters:         res.Chapters,
		Problems:         res.Problems,
		Findings:         res.Findings,
		ResourceProblems: res.ResourceProblems,
	}
	if err := packager.WriteReport(res.ReportPath, report); err != nil {
		c.log.Warn("report write failed", zap.Error(err))
		res.ReportPath = ""
	}
}

// mergeMeta overlays non-empty override fields onto the source metadata.
func mergeMeta(src, override model.BookMeta) model.BookMeta {
	out := src
	if override.Title != "" {
		out.Title = override.Title
	}
	if override.ISBN != "" {
		out.ISBN = override.ISBN
	}
	if len(override.Authors) > 0 {
		out.Authors = override.Authors
	}
	if override.Publisher != "" {
		out.Publisher = override.Publisher
	}
	if override.CopyrightYear != "" {
		out.CopyrightYear = override.CopyrightYear
	}
	if override.Language != "" {
		out.Language = override.Language
	}
	return out
}
