package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainOutput(t *testing.T) {
	prev := IsColorEnabled()
	EnableColor(false)
	t.Cleanup(func() { EnableColor(prev) })

	assert.Equal(t, "saved 3", Success("saved %d", 3))
	assert.Equal(t, "boom", Error("boom"))
	assert.Equal(t, "✓", StatusSymbol(true))
	assert.Equal(t, "✗", StatusSymbol(false))
	assert.Equal(t, "Name:          home", KeyValue("Name", "home"))
}

func TestColoredOutput(t *testing.T) {
	prev := IsColorEnabled()
	EnableColor(true)
	t.Cleanup(func() { EnableColor(prev) })

	out := Success("ok")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "\x1b[")
}
