package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Setting keys, shared by config files and ARCHFLOW_* environment variables.
const (
	KeyProvider              = "provider"
	KeyModel                 = "model"
	KeyBaseURL               = "base_url"
	KeyMaxRefinementRetries  = "max_refinement_retries"
	KeyMaxDiagramFixes       = "max_diagram_fixes"
	KeyDiagramsAfterApproval = "diagrams_after_approval"
	KeyLLMTimeout            = "llm_timeout"
	KeyLLMMaxAttempts        = "llm_max_attempts"
	KeySnapshotDir           = "snapshot_dir"
	KeySnapshotBackend       = "snapshot_backend"
	KeySnapshotDB            = "snapshot_db"
	KeyCheckpointDB          = "checkpoint_db"
	KeyKnowledgeDB           = "knowledge_db"
	KeyWebSearch             = "web_search"
	KeyOutputDir             = "output_dir"
	KeyValidateDiagrams      = "validate_diagrams"
	KeyLogLevel              = "log_level"
	KeyLogFormat             = "log_format"
)

// EnvPrefix prefixes environment overrides: max_refinement_retries is
// read from ARCHFLOW_MAX_REFINEMENT_RETRIES.
const EnvPrefix = "ARCHFLOW_"

var keys = []string{
	KeyProvider, KeyModel, KeyBaseURL,
	KeyMaxRefinementRetries, KeyMaxDiagramFixes, KeyDiagramsAfterApproval,
	KeyLLMTimeout, KeyLLMMaxAttempts,
	KeySnapshotDir, KeySnapshotBackend, KeySnapshotDB,
	KeyCheckpointDB, KeyKnowledgeDB, KeyWebSearch, KeyOutputDir, KeyValidateDiagrams,
	KeyLogLevel, KeyLogFormat,
}

// credentialEnv lists the variables consulted for each provider's API key,
// first match wins.
var credentialEnv = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"claude": {"ANTHROPIC_API_KEY"},
}

// Snapshot backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrInvalidSettings is wrapped by every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the typed configuration of the archflow CLI and MCP server.
type Settings struct {
	Provider string
	Model    string
	BaseURL  string

	MaxRefinementRetries  int
	MaxDiagramFixes       int
	DiagramsAfterApproval bool

	LLMTimeout     time.Duration
	LLMMaxAttempts int

	SnapshotDir     string
	SnapshotBackend string
	SnapshotDB      string
	CheckpointDB    string
	KnowledgeDB     string
	OutputDir       string

	// WebSearch adds web results to the manager's knowledge context.
	WebSearch bool

	ValidateDiagrams bool

	LogLevel  string
	LogFormat string

	// APIKeys maps provider name to credential. Never serialized.
	APIKeys map[string]string `json:"-" yaml:"-"`
}

// Defaults returns the built-in settings as Values.
func Defaults() Values {
	return NewValues(map[string]any{
		KeyProvider:              "openai",
		KeyMaxRefinementRetries:  3,
		KeyMaxDiagramFixes:       1,
		KeyDiagramsAfterApproval: false,
		KeyLLMTimeout:            "2m",
		KeyLLMMaxAttempts:        3,
		KeySnapshotDir:           "snapshots",
		KeySnapshotBackend:       BackendFile,
		KeySnapshotDB:            "archflow-snapshots.db",
		KeyCheckpointDB:          "",
		KeyKnowledgeDB:           "",
		KeyWebSearch:             false,
		KeyOutputDir:             "output",
		KeyValidateDiagrams:      false,
		KeyLogLevel:              "info",
		KeyLogFormat:             "text",
	})
}

// Load builds Settings from defaults, then the file at path (skipped when
// path is empty), then environment overrides.
func Load(path string) (Settings, error) {
	values := Defaults()
	if path != "" {
		file, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		values = values.Merge(file)
	}
	values = values.Merge(FromEnv(os.LookupEnv))

	s := FromValues(values)
	s.APIKeys = credentials(os.LookupEnv)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FromEnv collects ARCHFLOW_* overrides for every known key.
func FromEnv(lookup func(string) (string, bool)) Values {
	m := make(map[string]any)
	for _, key := range keys {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok {
			m[key] = v
		}
	}
	return NewValues(m)
}

func credentials(lookup func(string) (string, bool)) map[string]string {
	out := make(map[string]string, len(credentialEnv))
	for name, vars := range credentialEnv {
		for _, env := range vars {
			if v, ok := lookup(env); ok && v != "" {
				out[name] = v
				break
			}
		}
	}
	return out
}

// FromValues decodes Settings. Missing keys fall back to Defaults.
func FromValues(v Values) Settings {
	d := Defaults()
	return Settings{
		Provider:              v.String(KeyProvider, d.String(KeyProvider, "")),
		Model:                 v.String(KeyModel, ""),
		BaseURL:               v.String(KeyBaseURL, ""),
		MaxRefinementRetries:  v.Int(KeyMaxRefinementRetries, d.Int(KeyMaxRefinementRetries, 0)),
		MaxDiagramFixes:       v.Int(KeyMaxDiagramFixes, d.Int(KeyMaxDiagramFixes, 0)),
		DiagramsAfterApproval: v.Bool(KeyDiagramsAfterApproval, false),
		LLMTimeout:            v.Duration(KeyLLMTimeout, d.Duration(KeyLLMTimeout, 0)),
		LLMMaxAttempts:        v.Int(KeyLLMMaxAttempts, d.Int(KeyLLMMaxAttempts, 0)),
		SnapshotDir:           v.String(KeySnapshotDir, d.String(KeySnapshotDir, "")),
		SnapshotBackend:       strings.ToLower(v.String(KeySnapshotBackend, BackendFile)),
		SnapshotDB:            v.String(KeySnapshotDB, d.String(KeySnapshotDB, "")),
		CheckpointDB:          v.String(KeyCheckpointDB, ""),
		KnowledgeDB:           v.String(KeyKnowledgeDB, ""),
		WebSearch:             v.Bool(KeyWebSearch, false),
		OutputDir:             v.String(KeyOutputDir, d.String(KeyOutputDir, "")),
		ValidateDiagrams:      v.Bool(KeyValidateDiagrams, false),
		LogLevel:              strings.ToLower(v.String(KeyLogLevel, "info")),
		LogFormat:             strings.ToLower(v.String(KeyLogFormat, "text")),
	}
}

// Validate checks ranges and enumerations.
func (s Settings) Validate() error {
	var problems []string
	if s.Provider == "" {
		problems = append(problems, "provider is required")
	}
	if s.MaxRefinementRetries < 0 {
		problems = append(problems, "max_refinement_retries must be >= 0")
	}
	if s.MaxDiagramFixes < 0 {
		problems = append(problems, "max_diagram_fixes must be >= 0")
	}
	if s.LLMTimeout < 0 {
		problems = append(problems, "llm_timeout must be >= 0")
	}
	if s.LLMMaxAttempts < 1 {
		problems = append(problems, "llm_max_attempts must be >= 1")
	}
	switch s.SnapshotBackend {
	case BackendFile, BackendSQLite:
	default:
		problems = append(problems, fmt.Sprintf("snapshot_backend %q is not file or sqlite", s.SnapshotBackend))
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not text or json", s.LogFormat))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("log_level %q is not a slog level", s.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// APIKey returns the credential for provider, or "".
func (s Settings) APIKey(provider string) string {
	return s.APIKeys[provider]
}
