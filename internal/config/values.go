package config

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Values wraps a map[string]any for type-safe value extraction.
// All accessor methods return the default if the key is missing or the
// value cannot be converted. Strings are parsed for numeric, boolean and
// duration accessors so environment overrides can share the same map.
type Values struct {
	data map[string]any
}

// NewValues creates Values from the given map. A nil map yields empty Values.
func NewValues(data map[string]any) Values {
	if data == nil {
		data = make(map[string]any)
	}
	return Values{data: data}
}

// Merge returns a copy of v with every key of other laid over it.
func (v Values) Merge(other Values) Values {
	out := maps.Clone(v.data)
	if out == nil {
		out = make(map[string]any, len(other.data))
	}
	maps.Copy(out, other.data)
	return Values{data: out}
}

// String returns the string value for key, or def if missing or not a string.
func (v Values) String(key, def string) string {
	if s, ok := v.data[key].(string); ok {
		return s
	}
	return def
}

// Duration returns the duration for key, or def if missing or invalid.
//
// Accepts:
//   - string: parsed with time.ParseDuration, or as whole seconds
//   - int, int64, float64: interpreted as seconds
//   - time.Duration: used directly
func (v Values) Duration(key string, def time.Duration) time.Duration {
	switch val := v.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if n, err := strconv.Atoi(val); err == nil {
			return time.Duration(n) * time.Second
		}
	case float64:
		return time.Duration(val * float64(time.Second))
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case time.Duration:
		return val
	}
	return def
}

// Bool returns the boolean value for key, or def if missing or not a bool.
// Strings accepted by strconv.ParseBool are converted.
func (v Values) Bool(key string, def bool) bool {
	switch val := v.data[key].(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return def
}

// Int returns the integer value for key, or def if missing or not convertible.
// A float64 converts only when it has no fractional part.
func (v Values) Int(key string, def int) int {
	switch val := v.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return def
}

// Float returns the float64 value for key, or def if missing or not convertible.
func (v Values) Float(key string, def float64) float64 {
	switch val := v.data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return def
}

// StringSlice returns the string slice for key, or def if missing or not
// convertible. A string is split on commas.
func (v Values) StringSlice(key string, def []string) []string {
	switch val := v.data[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return def
			}
			out = append(out, s)
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return def
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v.data[key]
	return ok
}

// Raw returns the underlying map. It must not be modified.
func (v Values) Raw() map[string]any {
	return v.data
}
