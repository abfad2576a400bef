package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ParamType is the JSON-schema primitive type declared for a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeUnknown ParamType = "unknown"
)

// Param is a single declared tool parameter.
type Param struct {
	Name string    `json:"name"`
	Type ParamType `json:"type"`
}

// NoDescription stands in for a description the server did not send.
const NoDescription = "No description available"

// Descriptor describes a tool as advertised by its server. Params keep the
// order in which the server declared them.
type Descriptor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Session executes named tools on one backing server.
type Session interface {
	CallTool(ctx context.Context, name string, args map[string]any) (Result, error)
}

// Invocation is a tool call as parsed from model output, before coercion.
type Invocation struct {
	Tool string   `json:"tool"`
	Args []string `json:"args"`
}

// Call is an invocation whose arguments were mapped onto the tool schema.
type Call struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// Signature returns the canonical dedup key for the call. Map keys are
// rendered in sorted order so equal argument maps yield equal signatures.
func (c Call) Signature() string {
	return c.Tool + "|" + c.RenderArgs()
}

// RenderArgs renders the argument map as a JSON object with sorted keys.
func (c Call) RenderArgs() string {
	args := c.Args
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

// Result is what a tool session returns: either structured text lines or an
// opaque stringified payload when the server sent no structured content.
type Result struct {
	lines  []string
	opaque string
	isText bool
}

// Text builds a structured text result.
func Text(lines ...string) Result {
	if lines == nil {
		lines = []string{}
	}
	return Result{lines: lines, isText: true}
}

// Opaque builds a result for payloads without structured text content.
func Opaque(s string) Result {
	return Result{opaque: s}
}

// IsText reports whether the result carries structured text lines.
func (r Result) IsText() bool { return r.isText }

// Lines returns the text lines, or the opaque payload as a single line.
func (r Result) Lines() []string {
	if r.isText {
		return r.lines
	}
	return []string{r.opaque}
}

// Contains reports whether any line contains substr, ignoring case.
func (r Result) Contains(substr string) bool {
	needle := strings.ToLower(substr)
	for _, line := range r.Lines() {
		if strings.Contains(strings.ToLower(line), needle) {
			return true
		}
	}
	return false
}

// String renders the result for the conversation transcript.
func (r Result) String() string {
	if !r.isText {
		return r.opaque
	}
	data, err := json.Marshal(r.lines)
	if err != nil {
		return strings.Join(r.lines, "\n")
	}
	return string(data)
}
