// Package provider turns a provider name and a task tier into a ready LLM
// client.
//
// Providers form a closed set registered in a Registry. Each one binds a
// model per tier, a transport and its credential requirements. Factory
// validates a Config against the registry, builds the client and wraps it
// with retries.
package provider

import (
	"fmt"
	"strings"
)

// Tier selects the model size for a task.
type Tier string

const (
	// Fast is the cheaper model, used for judging.
	Fast Tier = "fast"
	// Smart is the stronger model, used for generation.
	Smart Tier = "smart"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == Fast || t == Smart
}

// Provider names.
const (
	OpenAI    = "openai"
	Gemini    = "gemini"
	Claude    = "claude"
	Ollama    = "ollama"
	ClaudeCLI = "claude-cli"
)

// Config selects a provider and carries its credentials.
// The API key is never serialized.
type Config struct {
	Name          string `json:"name"`
	APIKey        string `json:"-"`
	BaseURL       string `json:"base_url,omitempty"`
	ModelOverride string `json:"model_override,omitempty"`
}

// normalized lower-cases the name.
func (c Config) normalized() Config {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	return c
}

// UnknownProviderError reports a provider name outside the registry.
type UnknownProviderError struct {
	Name  string
	Known []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// MissingCredentialsError reports a provider that needs an API key but got none.
type MissingCredentialsError struct {
	Provider string
	EnvVars  []string
}

func (e *MissingCredentialsError) Error() string {
	if len(e.EnvVars) == 0 {
		return fmt.Sprintf("provider %s requires an API key", e.Provider)
	}
	return fmt.Sprintf("provider %s requires an API key (set %s)", e.Provider, strings.Join(e.EnvVars, " or "))
}

// UnknownTierError reports a tier other than fast or smart.
type UnknownTierError struct {
	Tier Tier
}

func (e *UnknownTierError) Error() string {
	return fmt.Sprintf("unknown tier %q", string(e.Tier))
}
