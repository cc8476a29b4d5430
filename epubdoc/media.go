package epubdoc

import (
	"bytes"
	"image"
	"path"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tsawler/rittdoc/refmap"
)

// probeGeometry extracts the pixel dimensions of a raster image from its
// encoded bytes. SVG is flagged as vector and carries no pixel geometry.
// Undecodable data yields empty geometry rather than an error; the
// packager retains the file either way.
func probeGeometry(name string, data []byte) refmap.Geometry {
	if strings.EqualFold(path.Ext(name), ".svg") {
		return refmap.Geometry{Vector: true}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return refmap.Geometry{}
	}
	return refmap.Geometry{Width: cfg.Width, Height: cfg.Height}
}
