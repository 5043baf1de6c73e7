// Package tools holds the side-effecting collaborators of the agents:
// diagram rendering and validation, and scaffold writing. Failures are
// reported as data so that nodes can record them in state.
package tools

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/archflow/internal/design"
)

// HLDToMermaid converts an HLD into Mermaid flowcharts without a model.
// It is used to fill diagrams the model left empty.
func HLDToMermaid(hld *design.HighLevelDesign) design.DiagramCode {
	if hld == nil {
		return design.DiagramCode{}
	}
	return design.DiagramCode{
		SystemContext: systemContext(hld),
		Container:     containerDiagram(hld),
		DataFlow:      dataFlow(hld),
	}
}

func systemContext(hld *design.HighLevelDesign) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	b.WriteString("    user((\"User\"))\n")
	fmt.Fprintf(&b, "    system[%s]\n", label(systemName(hld)))
	b.WriteString("    user -->|uses| system\n")
	for _, ext := range hld.ArchitectureOverview.ExternalInterfaces {
		id := "ext_" + nodeID(ext)
		fmt.Fprintf(&b, "    %s[%s]\n", id, label(ext))
		fmt.Fprintf(&b, "    system -->|integrates| %s\n", id)
	}
	return b.String()
}

func containerDiagram(hld *design.HighLevelDesign) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	for _, c := range hld.CoreComponents {
		fmt.Fprintf(&b, "    %s[%s]\n", nodeID(c.Name), label(c.Name))
	}
	for _, c := range hld.CoreComponents {
		for _, dep := range c.Dependencies {
			fmt.Fprintf(&b, "    %s --> %s\n", nodeID(c.Name), nodeID(dep))
		}
	}
	writeStorage(&b, hld)
	return b.String()
}

func dataFlow(hld *design.HighLevelDesign) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	b.WriteString("    client((\"Client\"))\n")
	if len(hld.CoreComponents) > 0 {
		fmt.Fprintf(&b, "    client -->|request| %s\n", nodeID(hld.CoreComponents[0].Name))
	}
	for _, c := range hld.CoreComponents {
		for _, dep := range c.Dependencies {
			fmt.Fprintf(&b, "    %s -->|calls| %s\n", nodeID(c.Name), nodeID(dep))
		}
	}
	writeStorage(&b, hld)
	return b.String()
}

func writeStorage(b *strings.Builder, hld *design.HighLevelDesign) {
	for _, s := range hld.DataArchitecture.StorageChoices {
		id := "db_" + nodeID(s.Technology)
		fmt.Fprintf(b, "    %s[(%s)]\n", id, label(s.Technology))
		fmt.Fprintf(b, "    %s -->|reads/writes| %s\n", nodeID(s.Component), id)
	}
}

func systemName(hld *design.HighLevelDesign) string {
	if s := hld.ArchitectureOverview.Style; s != "" {
		return "System (" + s + ")"
	}
	return "System"
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// nodeID turns a display name into a Mermaid node identifier.
func nodeID(name string) string {
	id := strings.Trim(nonIdent.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
	if id == "" {
		return "node"
	}
	// Mermaid reserves "end" in flowcharts.
	if strings.EqualFold(id, "end") {
		return id + "_"
	}
	return id
}

// label quotes a display name for use inside node brackets.
func label(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, "#quot;") + `"`
}

// diagramTypes are the Mermaid diagram keywords CheckSyntax accepts.
var diagramTypes = []string{
	"flowchart", "graph", "sequenceDiagram", "classDiagram", "stateDiagram",
	"stateDiagram-v2", "erDiagram", "C4Context", "C4Container", "C4Component",
	"C4Dynamic", "journey", "gantt", "mindmap", "architecture-beta", "block-beta",
}

// CheckSyntax performs the static checks that need no browser: a known
// diagram type on the first line and balanced brackets.
func CheckSyntax(code string) error {
	first := ""
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		first = line
		break
	}
	if first == "" {
		return fmt.Errorf("empty diagram")
	}
	keyword := strings.Fields(first)[0]
	known := false
	for _, t := range diagramTypes {
		if keyword == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown diagram type %q", keyword)
	}

	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	inQuote := false
	for _, r := range code {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '(' || r == '[' || r == '{':
			stack = append(stack, r)
		case pairs[r] != 0:
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return fmt.Errorf("unbalanced %q", r)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inQuote {
		return fmt.Errorf("unterminated string")
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}
