package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	script, err := parseScript("file:///tmp/mermaid.mjs", "flowchart TD\n a[\"x y\"] --> b")
	require.NoError(t, err)

	assert.Contains(t, script, `await import("file:///tmp/mermaid.mjs")`)
	assert.Contains(t, script, `mermaid.parse("flowchart TD\n a[\"x y\"] --> b")`)
	assert.Contains(t, script, "startOnLoad: false")
}
