// Package prompt holds the role prompts sent to each agent and the ${var}
// expansion that fills them in.
package prompt

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// placeholder matches ${name}; names are identifiers.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// UndefinedVariableError lists the placeholders that had no value.
type UndefinedVariableError struct {
	Template string
	Names    []string
}

func (e *UndefinedVariableError) Error() string {
	where := ""
	if e.Template != "" {
		where = " in " + e.Template
	}
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable%s: %s", where, e.Names[0])
	}
	return fmt.Sprintf("undefined variables%s: %s", where, strings.Join(e.Names, ", "))
}

// Vars are the values substituted into a template.
type Vars map[string]any

// Expand replaces every ${name} in s with vars[name]. Every placeholder
// must have a value; the missing ones are reported together in an
// *UndefinedVariableError. Values are formatted with %v.
func Expand(s string, vars Vars) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return fmt.Sprintf("%v", val)
		}
		if !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return match
	})
	if len(missing) > 0 {
		return out, &UndefinedVariableError{Names: missing}
	}
	return out, nil
}

// Placeholders returns the distinct variable names used in s, in order of
// first appearance.
func Placeholders(s string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}
