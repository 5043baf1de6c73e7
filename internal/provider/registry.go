package provider

import (
	"net/http"
	"slices"
	"sync"

	"github.com/randalmurphal/archflow/pkg/flowgraph/llm"
)

// BuildParams are handed to a Spec's Build function.
type BuildParams struct {
	Config     Config
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Spec describes one provider.
type Spec struct {
	Name string

	// Models maps each tier to a model identifier.
	Models map[Tier]string

	// BaseURL is the default endpoint. Config.BaseURL overrides it.
	BaseURL string

	// CredentialEnv names the variables holding the key. A non-empty list
	// means the provider requires an API key.
	CredentialEnv []string

	// Build constructs the raw client.
	Build func(p BuildParams) llm.Client
}

// RequiresKey reports whether the provider needs an API key.
func (s Spec) RequiresKey() bool {
	return len(s.CredentialEnv) > 0
}

// Registry is a thread-safe set of provider specs indexed by name.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds or replaces a spec.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

// Get returns the spec for name and whether it exists.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// DefaultRegistry returns the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Spec{
		Name:          OpenAI,
		Models:        map[Tier]string{Fast: "gpt-4o-mini", Smart: "gpt-4.1-mini"},
		BaseURL:       "https://api.openai.com/v1",
		CredentialEnv: []string{"OPENAI_API_KEY"},
		Build:         openAICompatible(OpenAI, true),
	})
	r.Register(Spec{
		Name:          Gemini,
		Models:        map[Tier]string{Fast: "gemini-2.5-flash-lite", Smart: "gemini-2.5-flash"},
		BaseURL:       "https://generativelanguage.googleapis.com/v1beta/openai/",
		CredentialEnv: []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		Build:         openAICompatible(Gemini, true),
	})
	// Anthropic's compatibility layer ignores response_format, so the
	// schema travels in the system prompt only.
	r.Register(Spec{
		Name:          Claude,
		Models:        map[Tier]string{Fast: "claude-3-haiku-20240307", Smart: "claude-3-5-sonnet-20240620"},
		BaseURL:       "https://api.anthropic.com/v1/",
		CredentialEnv: []string{"ANTHROPIC_API_KEY"},
		Build:         openAICompatible(Claude, false),
	})
	r.Register(Spec{
		Name:    Ollama,
		Models:  map[Tier]string{Fast: "phi4-mini:latest", Smart: "qwen3:8b"},
		BaseURL: "http://localhost:11434/v1",
		Build:   openAICompatible(Ollama, true),
	})
	r.Register(Spec{
		Name:   ClaudeCLI,
		Models: map[Tier]string{Fast: "haiku", Smart: "sonnet"},
		Build: func(p BuildParams) llm.Client {
			return llm.NewClaudeCLI(llm.WithModel(p.Model))
		},
	})
	return r
}

func openAICompatible(name string, jsonSchema bool) func(BuildParams) llm.Client {
	return func(p BuildParams) llm.Client {
		opts := []llm.OpenAIOption{
			llm.WithProviderName(name),
			llm.WithBaseURL(p.BaseURL),
			llm.WithDefaultModel(p.Model),
			llm.WithJSONSchema(jsonSchema),
		}
		if p.HTTPClient != nil {
			opts = append(opts, llm.WithHTTPClient(p.HTTPClient))
		}
		return llm.NewOpenAIClient(p.Config.APIKey, opts...)
	}
}
