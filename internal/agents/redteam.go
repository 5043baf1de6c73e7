package agents

import (
	"encoding/json"
	"strings"

	"github.com/randalmurphal/archflow/internal/design"
)

type probe struct {
	finding string
	match   func(doc string) bool
}

var probes = []probe{
	{
		finding: "Overly permissive firewall rules detected.",
		match:   anyOf("allow all", "0.0.0.0/0"),
	},
	{
		finding: "Plaintext storage or missing auth detected.",
		match:   anyOf("plaintext", "no auth"),
	},
	{
		finding: "Hardcoded admin credentials suspected.",
		match:   allOf("admin", "password", "hardcoded"),
	},
}

// RedTeamProbe scans the serialized design for phrases that indicate
// obvious vulnerabilities. It is a keyword check, not an analysis.
func RedTeamProbe(hld *design.HighLevelDesign) []string {
	if hld == nil {
		return nil
	}
	data, err := json.Marshal(hld)
	if err != nil {
		return nil
	}
	doc := strings.ToLower(string(data))

	var findings []string
	for _, p := range probes {
		if p.match(doc) {
			findings = append(findings, p.finding)
		}
	}
	return findings
}

func foldFindings(summary string, findings []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(summary, "\n"))
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("Red team findings:")
	for _, f := range findings {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}

func anyOf(terms ...string) func(string) bool {
	return func(doc string) bool {
		for _, t := range terms {
			if strings.Contains(doc, t) {
				return true
			}
		}
		return false
	}
}

func allOf(terms ...string) func(string) bool {
	return func(doc string) bool {
		for _, t := range terms {
			if !strings.Contains(doc, t) {
				return false
			}
		}
		return true
	}
}
