package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

func catalogFixture() []tools.Descriptor {
	return []tools.Descriptor{
		{Name: "open_powerpoint", Description: "Opens PowerPoint"},
		{
			Name:        "draw_rectangle",
			Description: "Draws a rectangle",
			Params: []tools.Param{
				{Name: "x", Type: tools.TypeInteger},
				{Name: "y", Type: tools.TypeInteger},
			},
		},
		{Name: "send-email", Description: tools.NoDescription, Params: []tools.Param{{Name: "recipient_id", Type: tools.TypeString}}},
	}
}

func TestCatalog(t *testing.T) {
	got := Catalog(catalogFixture())
	want := "open_powerpoint - Opens PowerPoint\nArgs: no parameters\n" +
		"draw_rectangle - Draws a rectangle\nArgs: x: integer, y: integer\n" +
		"send-email - No description available\nArgs: recipient_id: string"
	assert.Equal(t, want, got)
}

func TestCatalogRendersDeclaredValuesVerbatim(t *testing.T) {
	got := Catalog([]tools.Descriptor{{
		Name:   "tag_slide",
		Params: []tools.Param{{Name: "tags", Type: tools.ParamType("array")}},
	}})
	assert.Equal(t, "tag_slide - \nArgs: tags: array", got)
}

func TestBuild(t *testing.T) {
	b := NewBuilder(catalogFixture())

	t.Run("system prompt embeds the catalog", func(t *testing.T) {
		assert.Contains(t, b.System(), "Available Tools:\nopen_powerpoint - Opens PowerPoint")
		assert.NotContains(t, b.System(), "{{TOOLS}}")
	})

	t.Run("empty transcript sends only the task", func(t *testing.T) {
		prompt := b.Build("draw a box", nil)
		assert.True(t, strings.HasSuffix(prompt, "Conversation so far:\ndraw a box"))
		assert.True(t, strings.HasPrefix(prompt, b.System()))
	})

	t.Run("transcript lines follow the task in order", func(t *testing.T) {
		transcript := []string{
			`TOOL_CALL: open_powerpoint args={}`,
			`TOOL_RESULT: ["PowerPoint opened successfully"]`,
		}
		prompt := b.Build("draw a box", transcript)
		assert.True(t, strings.HasSuffix(prompt,
			"Conversation so far:\ndraw a box\nTOOL_CALL: open_powerpoint args={}\nTOOL_RESULT: [\"PowerPoint opened successfully\"]"))
	})
}
