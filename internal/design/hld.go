// Package design defines the documents exchanged between agents: the
// high-level and low-level designs, the review verdict, diagrams and the
// project scaffold.
//
// Field tags double as the JSON Schema handed to the model, so a field
// without omitempty is required in model output.
package design

import (
	"errors"
	"fmt"
	"strings"
)

// HighLevelDesign is the architecture-level document.
type HighLevelDesign struct {
	BusinessContext      BusinessContext      `json:"business_context"`
	ArchitectureOverview ArchitectureOverview `json:"architecture_overview"`
	CoreComponents       []Component          `json:"core_components" jsonschema:"the main services or modules of the system"`
	DataArchitecture     DataArchitecture     `json:"data_architecture"`
	NFRs                 NFRs                 `json:"nfrs"`
	SecurityCompliance   SecurityCompliance   `json:"security_compliance"`
	DesignDecisions      []Decision           `json:"design_decisions,omitempty"`
	Risks                []string             `json:"risks,omitempty"`
}

// BusinessContext states the problem being solved.
type BusinessContext struct {
	ProblemStatement string   `json:"problem_statement"`
	Goals            []string `json:"goals"`
	Constraints      []string `json:"constraints,omitempty"`
}

// ArchitectureOverview summarizes the chosen style and stack.
type ArchitectureOverview struct {
	Style              string   `json:"style" jsonschema:"architecture style, for example microservices, event-driven or monolith"`
	Summary            string   `json:"summary"`
	ExternalInterfaces []string `json:"external_interfaces,omitempty"`
	TechStack          []string `json:"tech_stack"`
}

// Component is one core component of the system.
type Component struct {
	Name           string   `json:"name"`
	Responsibility string   `json:"responsibility"`
	Dependencies   []string `json:"dependencies,omitempty" jsonschema:"names of other components this one calls"`
	Technology     string   `json:"technology,omitempty"`
}

// DataArchitecture describes storage and data movement.
type DataArchitecture struct {
	StorageChoices []StorageChoice `json:"storage_choices"`
	DataFlow       string          `json:"data_flow"`
}

// StorageChoice binds a component to a storage technology.
type StorageChoice struct {
	Component  string `json:"component"`
	Technology string `json:"technology"`
	Rationale  string `json:"rationale,omitempty"`
}

// NFRs lists the non-functional requirements.
type NFRs struct {
	Scalability  string   `json:"scalability"`
	Availability string   `json:"availability"`
	Latency      string   `json:"latency"`
	Other        []string `json:"other,omitempty"`
}

// SecurityCompliance is the security section of the HLD. The security
// specialist produces a replacement for it.
type SecurityCompliance struct {
	ThreatModelSummary       string   `json:"threat_model_summary"`
	AuthenticationStrategy   string   `json:"authentication_strategy"`
	AuthorizationStrategy    string   `json:"authorization_strategy"`
	SecretsManagement        string   `json:"secrets_management"`
	EncryptionAtRest         string   `json:"encryption_at_rest"`
	EncryptionInTransit      string   `json:"encryption_in_transit"`
	Auditing                 string   `json:"auditing"`
	ComplianceCertifications []string `json:"compliance_certifications,omitempty"`
}

// IsZero reports whether no field is set.
func (s SecurityCompliance) IsZero() bool {
	return s.ThreatModelSummary == "" && s.AuthenticationStrategy == "" &&
		s.AuthorizationStrategy == "" && s.SecretsManagement == "" &&
		s.EncryptionAtRest == "" && s.EncryptionInTransit == "" &&
		s.Auditing == "" && len(s.ComplianceCertifications) == 0
}

// Decision records a design decision.
type Decision struct {
	Title        string   `json:"title"`
	Rationale    string   `json:"rationale"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// ErrInvalidDocument is wrapped by every Validate failure.
var ErrInvalidDocument = errors.New("invalid document")

// Validate checks the constraints a schema cannot express.
func (h HighLevelDesign) Validate() error {
	if len(h.CoreComponents) == 0 {
		return fmt.Errorf("%w: high-level design has no core components", ErrInvalidDocument)
	}
	for i, c := range h.CoreComponents {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: core component %d has no name", ErrInvalidDocument, i)
		}
	}
	return nil
}

// ComponentNames returns the names of the core components in order.
func (h *HighLevelDesign) ComponentNames() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.CoreComponents))
	for _, c := range h.CoreComponents {
		names = append(names, c.Name)
	}
	return names
}

// WithSecurity returns a copy of h whose security section is sec.
// h itself is left untouched.
func (h *HighLevelDesign) WithSecurity(sec SecurityCompliance) *HighLevelDesign {
	if h == nil {
		return &HighLevelDesign{SecurityCompliance: sec}
	}
	out := *h
	out.SecurityCompliance = sec
	return &out
}
