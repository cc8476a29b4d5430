package rittdoc

import (
	"go.uber.org/zap"

	"github.com/tsawler/rittdoc/layout"
	"github.com/tsawler/rittdoc/model"
)

// options holds conversion configuration.
type options struct {
	logger      *zap.Logger
	archiveStem string
	meta        model.BookMeta
	dtdPath     string

	grid     layout.GridConfig
	flow     layout.FlowConfig
	chapters layout.ChapterConfig
	title    layout.TitleConfig

	pageImageDir string
	ocrLanguage  string
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		archiveStem: "book",
		grid:        layout.DefaultGridConfig(),
		flow:        layout.DefaultFlowConfig(),
		chapters:    layout.DefaultChapterConfig(),
		title:       layout.DefaultTitleConfig(),
	}
}

// Option configures a conversion.
type Option func(*options)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithArchiveStem names the output archive and staging directory
// (stem + ".zip"). The default stem is "book".
func WithArchiveStem(stem string) Option {
	return func(o *options) {
		if stem != "" {
			o.archiveStem = stem
		}
	}
}

// WithBookMeta supplies book metadata. PDF sources carry none, so this
// is the only way to populate the descriptor for them; for EPUB sources
// non-empty fields here override the publication's own metadata.
func WithBookMeta(meta model.BookMeta) Option {
	return func(o *options) { o.meta = meta }
}

// WithDTD validates against the DTD at the given path instead of the
// embedded schema.
func WithDTD(path string) Option {
	return func(o *options) { o.dtdPath = path }
}

// WithGridConfig overrides reading-order grid parameters.
func WithGridConfig(config layout.GridConfig) Option {
	return func(o *options) { o.grid = config }
}

// WithFlowConfig overrides paragraph-flow parameters.
func WithFlowConfig(config layout.FlowConfig) Option {
	return func(o *options) { o.flow = config }
}

// WithChapterConfig overrides chapter-detection parameters.
func WithChapterConfig(config layout.ChapterConfig) Option {
	return func(o *options) { o.chapters = config }
}

// WithTitleConfig overrides title-extraction parameters.
func WithTitleConfig(config layout.TitleConfig) Option {
	return func(o *options) { o.title = config }
}

// WithPageImages enables the OCR fallback for image-only PDF pages. The
// directory must hold rasterized page images named page-<n>.png. The
// fallback only operates in binaries built with the ocr tag; without it
// such pages yield no text and are reported as problems.
func WithPageImages(dir string) Option {
	return func(o *options) { o.pageImageDir = dir }
}

// WithOCRLanguage sets the Tesseract language string, e.g. "eng+deu".
func WithOCRLanguage(lang string) Option {
	return func(o *options) { o.ocrLanguage = lang }
}
