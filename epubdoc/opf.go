package epubdoc

import (
	"encoding/xml"
	"fmt"
	"path"
)

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Titles      []dcElement `xml:"title"`
	Creators    []dcElement `xml:"creator"`
	Languages   []dcElement `xml:"language"`
	Identifiers []dcElement `xml:"identifier"`
	Publishers  []dcElement `xml:"publisher"`
	Dates       []dcElement `xml:"date"`
	Rights      []dcElement `xml:"rights"`
}

type dcElement struct {
	Value string `xml:",chardata"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// parseOPF parses the package document. opfDir is the directory the OPF
// lives in; manifest hrefs are resolved against it so all returned paths
// are relative to the archive root.
func parseOPF(data []byte, opfDir string) (*Package, error) {
	var raw opfPackage
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("epubdoc: parsing OPF: %w", err)
	}

	pkg := &Package{
		Version:  raw.Version,
		Manifest: make(map[string]ManifestItem, len(raw.Manifest.Items)),
	}

	md := &pkg.Metadata
	if len(raw.Metadata.Titles) > 0 {
		md.Title = raw.Metadata.Titles[0].Value
	}
	for _, c := range raw.Metadata.Creators {
		if c.Value != "" {
			md.Creator = append(md.Creator, c.Value)
		}
	}
	if len(raw.Metadata.Languages) > 0 {
		md.Language = raw.Metadata.Languages[0].Value
	}
	if len(raw.Metadata.Identifiers) > 0 {
		md.Identifier = raw.Metadata.Identifiers[0].Value
	}
	if len(raw.Metadata.Publishers) > 0 {
		md.Publisher = raw.Metadata.Publishers[0].Value
	}
	if len(raw.Metadata.Dates) > 0 {
		md.Date = raw.Metadata.Dates[0].Value
	}
	if len(raw.Metadata.Rights) > 0 {
		md.Rights = raw.Metadata.Rights[0].Value
	}

	for _, it := range raw.Manifest.Items {
		pkg.Manifest[it.ID] = ManifestItem{
			ID:        it.ID,
			Href:      resolveHref(opfDir, it.Href),
			MediaType: it.MediaType,
		}
	}

	for _, ref := range raw.Spine.ItemRefs {
		item, ok := pkg.Manifest[ref.IDRef]
		if !ok {
			continue // dangling itemref, nothing to read
		}
		pkg.Spine = append(pkg.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Href:   item.Href,
			Linear: ref.Linear != "no",
		})
	}

	return pkg, nil
}

func resolveHref(dir, href string) string {
	if dir == "" || dir == "." {
		return path.Clean(href)
	}
	return path.Clean(path.Join(dir, href))
}
