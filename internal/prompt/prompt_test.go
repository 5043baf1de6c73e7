package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		vars     Vars
		expected string
	}{
		{"simple variable", "Hello ${name}", Vars{"name": "World"}, "Hello World"},
		{"multiple variables", "${a} and ${b}", Vars{"a": "x", "b": "y"}, "x and y"},
		{"adjacent", "${a}${b}", Vars{"a": "1", "b": "2"}, "12"},
		{"numeric value", "retries: ${n}", Vars{"n": 3}, "retries: 3"},
		{"repeated", "${x}-${x}", Vars{"x": "a"}, "a-a"},
		{"dollar style untouched", "costs $5 or $name", Vars{"name": "x"}, "costs $5 or $name"},
		{"json braces untouched", `{"a": {"b": 1}}`, nil, `{"a": {"b": 1}}`},
		{"empty value", "[${v}]", Vars{"v": ""}, "[]"},
		{"empty input", "", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExpand_Missing(t *testing.T) {
	_, err := Expand("${a} ${b} ${a} ${c}", Vars{"b": 1})

	var undefined *UndefinedVariableError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, []string{"a", "c"}, undefined.Names)
	assert.Equal(t, "undefined variables: a, c", err.Error())

	_, err = Expand("${only}", nil)
	assert.EqualError(t, err, "undefined variable: only")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"hld", "lld"}, Placeholders("${hld} vs ${lld} then ${hld}"))
	assert.Empty(t, Placeholders("no vars"))
}

func TestTemplate_Render(t *testing.T) {
	tmpl := Template{Name: "demo", System: "sys ${a}", Human: "human ${b}"}

	sys, human, err := tmpl.Render(Vars{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, "sys 1", sys)
	assert.Equal(t, "human 2", human)

	_, _, err = tmpl.Render(Vars{})
	var undefined *UndefinedVariableError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, "demo", undefined.Template)
	assert.Equal(t, []string{"a", "b"}, undefined.Names)
	assert.Contains(t, err.Error(), "in demo")
}

// Every role template must render once its own placeholders are supplied.
func TestRoleTemplates(t *testing.T) {
	seen := map[string]bool{}
	for _, tmpl := range All() {
		t.Run(tmpl.Name, func(t *testing.T) {
			require.False(t, seen[tmpl.Name], "duplicate template name")
			seen[tmpl.Name] = true

			vars := Vars{}
			for _, name := range append(Placeholders(tmpl.System), Placeholders(tmpl.Human)...) {
				vars[name] = "<" + name + ">"
			}
			sys, human, err := tmpl.Render(vars)
			require.NoError(t, err)
			assert.NotContains(t, sys, "${")
			assert.NotContains(t, human, "${")
			assert.NotEmpty(t, sys)
		})
	}
}
