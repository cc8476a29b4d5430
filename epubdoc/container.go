package epubdoc

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// ErrNoRootfile is returned when META-INF/container.xml declares no
// usable package document.
var ErrNoRootfile = errors.New("epubdoc: container.xml declares no rootfile")

type xmlContainer struct {
	Rootfiles []xmlRootfile `xml:"rootfiles>rootfile"`
}

type xmlRootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// opfPath parses META-INF/container.xml and returns the path of the
// package document, relative to the archive root.
func opfPath(data []byte) (string, error) {
	var c xmlContainer
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("epubdoc: parsing container.xml: %w", err)
	}
	for _, rf := range c.Rootfiles {
		if rf.MediaType == "application/oebps-package+xml" && rf.FullPath != "" {
			return rf.FullPath, nil
		}
	}
	// Some producers omit the media-type; fall back to the first entry.
	if len(c.Rootfiles) > 0 && c.Rootfiles[0].FullPath != "" {
		return c.Rootfiles[0].FullPath, nil
	}
	return "", ErrNoRootfile
}
