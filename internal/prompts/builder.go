package prompts

import (
	"fmt"
	"strings"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// Builder renders the per-turn prompt. The system part is rendered once
// from the tool catalog; the conversation part is re-rendered every turn.
type Builder struct {
	system string
}

// NewBuilder renders the instruction preamble for the given catalog.
func NewBuilder(descriptors []tools.Descriptor) *Builder {
	system := strings.ReplaceAll(GetAgentTemplate(), "{{TOOLS}}", Catalog(descriptors))
	return &Builder{system: system}
}

// System returns the rendered instruction preamble.
func (b *Builder) System() string {
	return b.system
}

// Build renders the full prompt for one turn. The transcript is appended in
// order after the task; nothing is truncated.
func (b *Builder) Build(task string, transcript []string) string {
	conversation := task
	if len(transcript) > 0 {
		conversation = task + "\n" + strings.Join(transcript, "\n")
	}
	prompt := strings.ReplaceAll(CONVERSATION_TEMPLATE, "{{SYSTEM}}", b.system)
	return strings.ReplaceAll(prompt, "{{CONVERSATION}}", conversation)
}

// Catalog flattens descriptors into one entry per tool.
func Catalog(descriptors []tools.Descriptor) string {
	entries := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		entries = append(entries, fmt.Sprintf("%s - %s\nArgs: %s", d.Name, d.Description, params(d.Params)))
	}
	return strings.Join(entries, "\n")
}

func params(ps []tools.Param) string {
	if len(ps) == 0 {
		return "no parameters"
	}
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}
