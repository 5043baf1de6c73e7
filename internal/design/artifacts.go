package design

import (
	"fmt"
	"strings"
)

// DiagramKind names one of the generated diagrams.
type DiagramKind string

const (
	SystemContext DiagramKind = "system_context"
	Container     DiagramKind = "container"
	DataFlow      DiagramKind = "data_flow"
)

// DiagramKinds lists every kind in rendering order.
var DiagramKinds = []DiagramKind{SystemContext, Container, DataFlow}

// Title is the human-readable name of k.
func (k DiagramKind) Title() string {
	switch k {
	case SystemContext:
		return "System Context"
	case Container:
		return "Container"
	case DataFlow:
		return "Data Flow"
	}
	return string(k)
}

// DiagramCode is the model's output for the visual architect: Mermaid code
// per diagram kind. Empty fields are filled from the HLD.
type DiagramCode struct {
	SystemContext string `json:"system_context,omitempty" jsonschema:"Mermaid flowchart of the system and its external actors"`
	Container     string `json:"container,omitempty" jsonschema:"Mermaid flowchart of the deployable containers"`
	DataFlow      string `json:"data_flow,omitempty" jsonschema:"Mermaid flowchart of how data moves between components"`
}

// Get returns the code for kind.
func (c DiagramCode) Get(kind DiagramKind) string {
	switch kind {
	case SystemContext:
		return c.SystemContext
	case Container:
		return c.Container
	case DataFlow:
		return c.DataFlow
	}
	return ""
}

// Diagram is one rendered diagram. RenderError is set instead of Path when
// rendering failed; render failures are data, not errors.
type Diagram struct {
	Kind        DiagramKind `json:"kind"`
	Code        string      `json:"code"`
	Path        string      `json:"path,omitempty"`
	RenderError string      `json:"render_error,omitempty"`
}

// OK reports whether the diagram rendered.
func (d Diagram) OK() bool {
	return d.RenderError == ""
}

// DiagramArtifacts is the visual architect's output.
type DiagramArtifacts struct {
	Diagrams []Diagram `json:"diagrams"`
}

// Failed returns the diagrams whose rendering failed.
func (a *DiagramArtifacts) Failed() []Diagram {
	if a == nil {
		return nil
	}
	var out []Diagram
	for _, d := range a.Diagrams {
		if !d.OK() {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the diagram of the given kind.
func (a *DiagramArtifacts) Get(kind DiagramKind) (Diagram, bool) {
	if a == nil {
		return Diagram{}, false
	}
	for _, d := range a.Diagrams {
		if d.Kind == kind {
			return d, true
		}
	}
	return Diagram{}, false
}

// FixNotes describes the render failures, for feeding back to the model.
func (a *DiagramArtifacts) FixNotes() string {
	failed := a.Failed()
	if len(failed) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The previous attempt failed to render:\n")
	for _, d := range failed {
		fmt.Fprintf(&b, "- %s: %s\n", d.Kind, d.RenderError)
	}
	return b.String()
}

// DiagramReview annotates diagrams with a syntax and consistency check.
// It never gates the pipeline.
type DiagramReview struct {
	ValidSyntax     bool     `json:"valid_syntax"`
	MissingElements []string `json:"missing_elements,omitempty" jsonschema:"HLD components that no diagram shows"`
	InvalidElements []string `json:"invalid_elements,omitempty" jsonschema:"diagram nodes that match no HLD component"`
	Critique        string   `json:"critique"`
}

// StarterFile is one file of the project scaffold.
type StarterFile struct {
	Filename string `json:"filename" jsonschema:"path relative to the project root"`
	Content  string `json:"content"`
}

// ScaffoldSpec is the scaffolder's output.
type ScaffoldSpec struct {
	Files []StarterFile `json:"files"`
}

// Validate requires at least one file and a name for each.
func (s ScaffoldSpec) Validate() error {
	if len(s.Files) == 0 {
		return fmt.Errorf("%w: scaffold has no files", ErrInvalidDocument)
	}
	for i, f := range s.Files {
		if strings.TrimSpace(f.Filename) == "" {
			return fmt.Errorf("%w: scaffold file %d has no filename", ErrInvalidDocument, i)
		}
	}
	return nil
}

// ScaffoldArtifacts records what was written for a scaffold.
type ScaffoldArtifacts struct {
	Spec      ScaffoldSpec `json:"spec"`
	OutputDir string       `json:"output_dir,omitempty"`
	Log       []string     `json:"log,omitempty"`
}
