/*
Package config loads archflow settings.

Values wraps a map[string]any and provides typed accessors that return a
default on missing keys or type mismatches. Strings are coerced for the
numeric, boolean and duration accessors so that environment variables and
YAML share one representation.

	v, _ := config.FromFile("archflow.yaml")
	retries := v.Int("max_refinement_retries", 3)

Load layers the sources into a typed Settings:

 1. Defaults
 2. The config file, when a path is given (.yaml, .yml or .json)
 3. ARCHFLOW_<KEY> environment variables
 4. Provider credentials from OPENAI_API_KEY, GEMINI_API_KEY or
    GOOGLE_API_KEY, and ANTHROPIC_API_KEY

CLI flags are applied by the caller after Load.
*/
package config
