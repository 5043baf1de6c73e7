package prompt

import (
	"errors"
	"slices"
)

// Template is a pair of system and human prompts for one agent role.
type Template struct {
	Name   string
	System string
	Human  string
}

// Render expands both prompts with vars. Missing variables from either
// prompt are reported in one *UndefinedVariableError naming the template.
func (t Template) Render(vars Vars) (string, string, error) {
	system, errSys := Expand(t.System, vars)
	human, errHuman := Expand(t.Human, vars)
	if errSys == nil && errHuman == nil {
		return system, human, nil
	}

	var names []string
	for _, err := range []error{errSys, errHuman} {
		var undefined *UndefinedVariableError
		if !errors.As(err, &undefined) {
			continue
		}
		for _, n := range undefined.Names {
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}
	return "", "", &UndefinedVariableError{Template: t.Name, Names: names}
}

// Role templates.
var (
	Manager = Template{
		Name: "manager",
		System: `You are a principal software architect.
Write a high-level design for the system the user describes.

Cover the business context, an architecture overview with its style and
technology stack, the core components with their responsibilities and
dependencies, the data architecture, non-functional requirements, key design
decisions with the alternatives you rejected, and the main risks.
Favor concrete technology choices over generic advice and justify each one.

Relevant knowledge base context:
${context}
${feedback}`,
		Human: `${request}`,
	}

	Security = Template{
		Name: "security",
		System: `You are a security specialist.
Review the security and compliance section of the high-level design below
and rewrite it to a zero-trust standard: threat model, authentication,
authorization, secrets management, encryption at rest and in transit,
auditing and the compliance regimes that apply.

Current high-level design:
${hld}`,
		Human: `Harden this security design.`,
	}

	TeamLead = Template{
		Name: "team_lead",
		System: `You are a senior team lead.
Derive a low-level design from the high-level design below. Use the same
component names. Specify modules and interfaces per component, the API
endpoints with request and response schemas, the data model with indexes,
error handling, the security implementation, the testing strategy and
operational readiness.

High-level design:
${hld}`,
		Human: `Write the low-level design.`,
	}

	Judge = Template{
		Name: "judge",
		System: `You are a QA architect reviewing a design pair.
Check that the low-level design implements every high-level component,
that security requirements are addressed, that the non-functional
requirements are met and that the testing strategy covers the risky paths.
Set is_valid only when the design is ready to build. Score it from 0 to 10
and list concrete issues per category with recommendations.`,
		Human: `High-level design:
${hld}

Low-level design:
${lld}`,
	}

	Refiner = Template{
		Name: "refiner",
		System: `You are a principal software architect revising a rejected design.
Address every point of the review below and return complete replacements
for both the high-level and the low-level design, plus notes describing
what changed.

Review critique:
${critique}

Issues:
${issues}`,
		Human: `High-level design:
${hld}

Low-level design:
${lld}`,
	}

	Visuals = Template{
		Name: "visuals",
		System: `You are a visualization expert.
Write Mermaid flowchart code for three diagrams of the design below:
system_context, container and data_flow. Each diagram must be valid
Mermaid that starts with "flowchart" and uses node names taken from the
design's components.
${fix_notes}
Design summary:
${hld}`,
		Human: `Generate the diagram code.`,
	}

	DiagramValidator = Template{
		Name: "diagram_validator",
		System: `You are a diagram QA architect.
Check the Mermaid diagrams below for syntax errors and for consistency with
the listed components. Report missing and invalid elements and a short
critique.

Components:
${components}`,
		Human: `${diagrams}`,
	}

	Scaffold = Template{
		Name: "scaffold",
		System: `You are a DevOps engineer.
Produce the file structure and starter code for the low-level design below:
a README, a dependency manifest and one stub per module. Paths are relative
to the project root.

Low-level design:
${lld}`,
		Human: `Scaffold this project.`,
	}
)

// All returns every role template.
func All() []Template {
	return []Template{Manager, Security, TeamLead, Judge, Refiner, Visuals, DiagramValidator, Scaffold}
}
