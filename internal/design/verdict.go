package design

import (
	"fmt"
	"strings"
)

// MaxScore is the top of the verdict score scale.
const MaxScore = 10

// Verdict is the judge's assessment of an HLD and LLD pair.
type Verdict struct {
	IsValid             bool     `json:"is_valid" jsonschema:"true only when the design is ready to build"`
	Critique            string   `json:"critique"`
	Score               int      `json:"score" jsonschema:"overall quality from 0 to 10"`
	HLDLLDMismatches    []string `json:"hld_lld_mismatches,omitempty"`
	SecurityGaps        []string `json:"security_gaps,omitempty"`
	NFRMismatches       []string `json:"nfr_mismatches,omitempty"`
	TestingCoverageGaps []string `json:"testing_coverage_gaps,omitempty"`
	Recommendations     []string `json:"recommendations,omitempty"`
}

// Validate checks the score range.
func (v Verdict) Validate() error {
	if v.Score < 0 || v.Score > MaxScore {
		return fmt.Errorf("%w: score %d outside 0..%d", ErrInvalidDocument, v.Score, MaxScore)
	}
	return nil
}

// Issues flattens the itemized findings into one list, prefixed by category.
func (v *Verdict) Issues() []string {
	if v == nil {
		return nil
	}
	var out []string
	add := func(category string, items []string) {
		for _, it := range items {
			out = append(out, category+": "+it)
		}
	}
	add("mismatch", v.HLDLLDMismatches)
	add("security", v.SecurityGaps)
	add("nfr", v.NFRMismatches)
	add("testing", v.TestingCoverageGaps)
	return out
}

// Summary is a one-line description for logs.
func (v *Verdict) Summary() string {
	if v == nil {
		return "not judged"
	}
	status := "rejected"
	if v.IsValid {
		status = "approved"
	}
	s := fmt.Sprintf("%s (score %d/%d)", status, v.Score, MaxScore)
	if n := len(v.Issues()); n > 0 {
		s += fmt.Sprintf(", %d issues", n)
	}
	if c := strings.TrimSpace(v.Critique); c != "" && !v.IsValid {
		s += ": " + firstLine(c)
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// RefinedDesign is the refiner's output: full replacements for both documents.
type RefinedDesign struct {
	HLD              HighLevelDesign `json:"hld"`
	LLD              LowLevelDesign  `json:"lld"`
	ImprovementNotes []string        `json:"improvement_notes,omitempty"`
}

// Validate validates both documents.
func (r RefinedDesign) Validate() error {
	if err := r.HLD.Validate(); err != nil {
		return fmt.Errorf("refined hld: %w", err)
	}
	if err := r.LLD.Validate(); err != nil {
		return fmt.Errorf("refined lld: %w", err)
	}
	return nil
}
