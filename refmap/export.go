package refmap

import (
	"encoding/json"
	"fmt"
	"os"
)

// Record is the serialized form of the registry written by Export.
type Record struct {
	Resources []Resource `json:"resources"`
	Summary   Summary    `json:"summary"`
}

// Summary carries aggregate counts for quick triage.
type Summary struct {
	Total      int `json:"total"`
	Images     int `json:"images"`
	Links      int `json:"links"`
	Finalized  int `json:"finalized"`
	Unresolved int `json:"unresolved_references"`
}

// Snapshot builds the exportable record without touching the filesystem.
func (m *Mapper) Snapshot() Record {
	resources := m.Resources()

	m.mu.Lock()
	unresolved := len(m.pending)
	m.mu.Unlock()

	rec := Record{
		Resources: resources,
		Summary: Summary{
			Total:      len(resources),
			Unresolved: unresolved,
		},
	}
	for _, r := range resources {
		switch r.Kind {
		case KindLink:
			rec.Summary.Links++
		default:
			rec.Summary.Images++
		}
		if r.FinalName != "" {
			rec.Summary.Finalized++
		}
	}
	return rec
}

// Export serializes the full registry, with summary counts, to path as a
// durable audit artifact. Export is written regardless of pipeline success
// or failure.
func (m *Mapper) Export(path string) error {
	rec := m.Snapshot()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("refmap: marshaling registry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("refmap: writing export: %w", err)
	}
	return nil
}
