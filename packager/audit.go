package packager

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tsawler/rittdoc/dtd"
	"github.com/tsawler/rittdoc/refmap"
)

// Report is the machine-readable validation report written next to the
// archive. It is produced for every job, including failed ones, so a
// failed conversion always leaves evidence of what went wrong.
type Report struct {
	Status   string `json:"status"`
	Archive  string `json:"archive,omitempty"`
	Chapters int    `json:"chapters"`

	// Problems are conversion-level warnings: dropped chapters, format
	// cross-check mismatches, anything that survived without stopping
	// the job.
	Problems         []string         `json:"problems"`
	Findings         []dtd.Finding    `json:"findings"`
	ResourceProblems []refmap.Problem `json:"resource_problems"`
}

// WriteReport writes the report as indented JSON.
func WriteReport(path string, r Report) error {
	if r.Problems == nil {
		r.Problems = []string{}
	}
	if r.Findings == nil {
		r.Findings = []dtd.Finding{}
	}
	if r.ResourceProblems == nil {
		r.ResourceProblems = []refmap.Problem{}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("packager: encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("packager: writing report: %w", err)
	}
	return nil
}
