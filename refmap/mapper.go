// Package refmap tracks every extractable resource (image, cross-reference
// target) through its three naming stages: the original path as seen in
// the source, the intermediate name assigned during extraction, and the
// final name assigned during packaging.
//
// One Mapper is constructed per conversion job, passed explicitly through
// the pipeline, and discarded with the job. It is never shared across jobs.
package refmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Mapper errors.
var (
	// ErrDuplicateResource is returned when the same original path is
	// registered twice. Duplicate extraction is a logic error in the
	// caller, not a condition to swallow.
	ErrDuplicateResource = errors.New("refmap: resource already registered")

	// ErrUnknownResource is returned when finalizing a resource that was
	// never registered.
	ErrUnknownResource = errors.New("refmap: unknown resource")
)

// Kind classifies a resource.
type Kind int

const (
	// KindImage is an extracted image asset.
	KindImage Kind = iota
	// KindLink is a cross-reference target.
	KindLink
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	if k == KindLink {
		return "link"
	}
	return "image"
}

// Geometry describes a resource's pixel dimensions and raster/vector nature.
type Geometry struct {
	Width  int  `json:"width"`
	Height int  `json:"height"`
	Vector bool `json:"vector"`
}

// Resource is one tracked asset or link target. Resources are owned solely
// by the Mapper's registry; chapters hold back-references by ID only.
type Resource struct {
	// OriginalPath is the identifier as seen in the source document.
	OriginalPath string `json:"original_path"`

	// IntermediateName is the name assigned during extraction.
	IntermediateName string `json:"intermediate_name"`

	// FinalName is the name assigned during packaging; empty until
	// Finalize is called.
	FinalName string `json:"final_name"`

	// Kind is the resource kind.
	Kind Kind `json:"kind"`

	// Geometry holds dimensions and raster/vector classification.
	Geometry Geometry `json:"geometry"`

	// Chapters is the sorted set of chapter IDs referencing this
	// resource. Many chapters may reference one resource; the set is a
	// back-reference, never ownership.
	Chapters []string `json:"chapters"`

	// Exists records whether the final file was present under the output
	// root at validation time.
	Exists bool `json:"exists"`
}

// Problem describes one resolution failure found by Validate.
type Problem struct {
	// OriginalPath identifies the resource, or the referenced path for a
	// dangling reference.
	OriginalPath string `json:"original_path"`

	// Category is one of "missing final name", "final file not found",
	// "unresolved reference".
	Category string `json:"category"`

	// Detail is a human-readable description.
	Detail string `json:"detail"`
}

// Mapper maintains the resource registry for one conversion job.
// Registration, reference recording and finalization serialize on an
// internal mutex so per-chapter work may proceed concurrently.
type Mapper struct {
	mu        sync.Mutex
	resources map[string]*Resource

	// pending records references to original paths never registered;
	// they surface as unresolved-reference problems in Validate.
	pending map[string]map[string]bool
}

// NewMapper creates an empty registry.
func NewMapper() *Mapper {
	return &Mapper{
		resources: make(map[string]*Resource),
		pending:   make(map[string]map[string]bool),
	}
}

// Register creates a Resource entry. Registering the same original path
// twice returns ErrDuplicateResource.
func (m *Mapper) Register(originalPath, intermediateName string, kind Kind, geom Geometry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resources[originalPath]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResource, originalPath)
	}
	res := &Resource{
		OriginalPath:     originalPath,
		IntermediateName: intermediateName,
		Kind:             kind,
		Geometry:         geom,
	}
	// References recorded before registration attach now.
	if chapters, ok := m.pending[originalPath]; ok {
		for ch := range chapters {
			res.Chapters = append(res.Chapters, ch)
		}
		sort.Strings(res.Chapters)
		delete(m.pending, originalPath)
	}
	m.resources[originalPath] = res
	return nil
}

// RecordReference adds chapterID to the resource's referencing-chapter set.
// The call is idempotent. A reference to an unregistered path is held as
// pending and reported by Validate if it never resolves.
func (m *Mapper) RecordReference(originalPath, chapterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if res, ok := m.resources[originalPath]; ok {
		for _, ch := range res.Chapters {
			if ch == chapterID {
				return
			}
		}
		res.Chapters = append(res.Chapters, chapterID)
		sort.Strings(res.Chapters)
		return
	}
	if m.pending[originalPath] == nil {
		m.pending[originalPath] = make(map[string]bool)
	}
	m.pending[originalPath][chapterID] = true
}

// Finalize sets the resource's final name. The resource must already be
// registered.
func (m *Mapper) Finalize(originalPath, finalName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.resources[originalPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, originalPath)
	}
	res.FinalName = finalName
	return nil
}

// Lookup returns a copy of the resource for the original path.
func (m *Mapper) Lookup(originalPath string) (Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.resources[originalPath]
	if !ok {
		return Resource{}, false
	}
	return *res, true
}

// Resources returns copies of all registered resources sorted by original
// path.
func (m *Mapper) Resources() []Resource {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Resource, 0, len(m.resources))
	for _, res := range m.resources {
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OriginalPath < out[j].OriginalPath
	})
	return out
}

// Validate checks that every resource reached a final name, that each final
// file exists under outputRoot, and that no recorded reference is left
// dangling. Validation is advisory: the pipeline proceeds to packaging
// regardless, and the problems are exported for operator triage.
func (m *Mapper) Validate(outputRoot string) (bool, []Problem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var problems []Problem

	paths := make([]string, 0, len(m.resources))
	for p := range m.resources {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		res := m.resources[p]
		if res.FinalName == "" {
			problems = append(problems, Problem{
				OriginalPath: p,
				Category:     "missing final name",
				Detail:       fmt.Sprintf("resource %s (intermediate %s) was never finalized", p, res.IntermediateName),
			})
			continue
		}
		// Link-target final names carry a #fragment; only the file part
		// is checked on disk.
		fileName, _, _ := strings.Cut(res.FinalName, "#")
		full := filepath.Join(outputRoot, fileName)
		if _, err := os.Stat(full); err != nil {
			res.Exists = false
			problems = append(problems, Problem{
				OriginalPath: p,
				Category:     "final file not found",
				Detail:       fmt.Sprintf("final name %s missing under %s", res.FinalName, outputRoot),
			})
			continue
		}
		res.Exists = true
	}

	dangling := make([]string, 0, len(m.pending))
	for p := range m.pending {
		dangling = append(dangling, p)
	}
	sort.Strings(dangling)
	for _, p := range dangling {
		chapters := make([]string, 0, len(m.pending[p]))
		for ch := range m.pending[p] {
			chapters = append(chapters, ch)
		}
		sort.Strings(chapters)
		problems = append(problems, Problem{
			OriginalPath: p,
			Category:     "unresolved reference",
			Detail:       fmt.Sprintf("referenced by %v but never registered", chapters),
		})
	}

	return len(problems) == 0, problems
}
