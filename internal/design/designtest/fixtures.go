// Package designtest provides sample design documents for tests.
package designtest

import (
	"encoding/json"

	"github.com/randalmurphal/archflow/internal/design"
)

// HLD returns a small high-level design for a URL shortener.
func HLD() design.HighLevelDesign {
	return design.HighLevelDesign{
		BusinessContext: design.BusinessContext{
			ProblemStatement: "Shorten long URLs and redirect visitors quickly.",
			Goals:            []string{"sub-50ms redirects", "custom aliases"},
		},
		ArchitectureOverview: design.ArchitectureOverview{
			Style:     "microservices",
			Summary:   "A stateless API in front of a key-value store.",
			TechStack: []string{"Go", "Redis", "PostgreSQL"},
		},
		CoreComponents: []design.Component{
			{Name: "api-gateway", Responsibility: "Routes and authenticates requests", Dependencies: []string{"shortener"}},
			{Name: "shortener", Responsibility: "Creates and resolves short codes", Dependencies: []string{"store"}, Technology: "Go"},
			{Name: "store", Responsibility: "Persists mappings", Technology: "PostgreSQL"},
		},
		DataArchitecture: design.DataArchitecture{
			StorageChoices: []design.StorageChoice{{Component: "store", Technology: "PostgreSQL", Rationale: "durable"}},
			DataFlow:       "client -> api-gateway -> shortener -> store",
		},
		NFRs: design.NFRs{
			Scalability:  "horizontal",
			Availability: "99.9%",
			Latency:      "p99 < 50ms",
		},
	}
}

// Security returns a populated security section.
func Security() design.SecurityCompliance {
	return design.SecurityCompliance{
		ThreatModelSummary:     "STRIDE over the public API",
		AuthenticationStrategy: "OAuth2 client credentials",
		AuthorizationStrategy:  "RBAC per tenant",
		SecretsManagement:      "Vault",
		EncryptionAtRest:       "AES-256",
		EncryptionInTransit:    "TLS 1.3",
		Auditing:               "append-only audit log",
	}
}

// LLD returns a low-level design matching HLD.
func LLD() design.LowLevelDesign {
	return design.LowLevelDesign{
		DetailedComponents: []design.ComponentDetail{
			{Name: "api-gateway", Modules: []string{"router", "auth"}},
			{Name: "shortener", Modules: []string{"codec", "service"}, Interfaces: []string{"Shorten(url) code"}},
			{Name: "store", Modules: []string{"repository"}},
		},
		APIDesign: []design.Endpoint{
			{Method: "POST", Path: "/v1/links", Description: "create a short link"},
			{Method: "GET", Path: "/{code}", Description: "redirect"},
		},
		DataModel: []design.Entity{
			{Name: "Link", Fields: []string{"code", "url", "created_at"}, Indexes: []string{"code"}},
		},
		ErrorHandling:          "typed errors mapped to HTTP status",
		SecurityImplementation: "JWT validation at the gateway",
		TestingStrategy:        "unit and load tests",
	}
}

// Approved returns a passing verdict.
func Approved() design.Verdict {
	return design.Verdict{IsValid: true, Critique: "Ready to build.", Score: 9}
}

// Rejected returns a failing verdict with the given critique.
func Rejected(critique string) design.Verdict {
	return design.Verdict{
		IsValid:         false,
		Critique:        critique,
		Score:           4,
		NFRMismatches:   []string{critique},
		Recommendations: []string{"address: " + critique},
	}
}

// Refined returns a refined design carrying the sample documents.
func Refined(note string) design.RefinedDesign {
	return design.RefinedDesign{HLD: HLD(), LLD: LLD(), ImprovementNotes: []string{note}}
}

// Scaffold returns a two-file scaffold.
func Scaffold() design.ScaffoldSpec {
	return design.ScaffoldSpec{Files: []design.StarterFile{
		{Filename: "README.md", Content: "# shortener\n"},
		{Filename: "cmd/shortener/main.go", Content: "package main\n\nfunc main() {}\n"},
	}}
}

// Diagrams returns Mermaid code for every diagram kind.
func Diagrams() design.DiagramCode {
	return design.DiagramCode{
		SystemContext: "flowchart LR\n  user --> api-gateway",
		Container:     "flowchart LR\n  api-gateway --> shortener --> store",
		DataFlow:      "flowchart LR\n  client --> api-gateway",
	}
}

// JSON marshals v, panicking on error. Use it to script model responses.
func JSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
