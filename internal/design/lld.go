package design

import "fmt"

// LowLevelDesign is the implementation-level document derived from the HLD.
type LowLevelDesign struct {
	DetailedComponents     []ComponentDetail `json:"detailed_components" jsonschema:"one entry per core component of the high-level design, using the same names"`
	APIDesign              []Endpoint        `json:"api_design"`
	DataModel              []Entity          `json:"data_model"`
	ErrorHandling          string            `json:"error_handling"`
	SecurityImplementation string            `json:"security_implementation"`
	TestingStrategy        string            `json:"testing_strategy"`
	OperationalReadiness   string            `json:"operational_readiness,omitempty"`
}

// ComponentDetail expands one HLD component.
type ComponentDetail struct {
	Name       string   `json:"name"`
	Modules    []string `json:"modules"`
	Interfaces []string `json:"interfaces,omitempty"`
}

// Endpoint is one API operation.
type Endpoint struct {
	Method         string `json:"method"`
	Path           string `json:"path"`
	Description    string `json:"description"`
	RequestSchema  string `json:"request_schema,omitempty"`
	ResponseSchema string `json:"response_schema,omitempty"`
}

// Entity is one persisted data type.
type Entity struct {
	Name    string   `json:"name"`
	Fields  []string `json:"fields"`
	Indexes []string `json:"indexes,omitempty"`
}

// Validate checks the constraints a schema cannot express.
func (l LowLevelDesign) Validate() error {
	if len(l.DetailedComponents) == 0 {
		return fmt.Errorf("%w: low-level design has no detailed components", ErrInvalidDocument)
	}
	for i, e := range l.APIDesign {
		if e.Method == "" || e.Path == "" {
			return fmt.Errorf("%w: endpoint %d needs a method and a path", ErrInvalidDocument, i)
		}
	}
	return nil
}
