// Package schema builds and reads tool input schemas with their property
// order intact. Positional tool arguments are mapped by that order, so it
// must survive the trip from server to agent.
package schema

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// Property is one input property.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Schema is a JSON-schema object whose properties marshal in insertion order.
type Schema struct {
	Type       string                                   `json:"type"`
	Properties *orderedmap.OrderedMap[string, Property] `json:"properties"`
	Required   []string                                 `json:"required,omitempty"`
}

// Object returns an empty object schema.
func Object() *Schema {
	return &Schema{
		Type:       "object",
		Properties: orderedmap.New[string, Property](),
	}
}

// Prop appends a property. Redeclaring a name keeps its original position.
func (s *Schema) Prop(name string, typ tools.ParamType, description string, def any) *Schema {
	s.Properties.Set(name, Property{Type: string(typ), Description: description, Default: def})
	return s
}

// Require marks properties as required.
func (s *Schema) Require(names ...string) *Schema {
	s.Required = append(s.Required, names...)
	return s
}

// Raw marshals the schema for mcp.NewToolWithRawSchema.
func (s *Schema) Raw() json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		// only Default can fail to marshal, and callers pass literals
		panic(fmt.Sprintf("schema: marshal: %v", err))
	}
	return data
}

// Params reads the declared parameters of a raw input schema in declaration
// order. Declared types are kept verbatim; a property without a usable type
// is reported as TypeUnknown.
func Params(raw json.RawMessage) ([]tools.Param, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc struct {
		Properties *orderedmap.OrderedMap[string, json.RawMessage] `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse input schema: %w", err)
	}
	if doc.Properties == nil {
		return nil, nil
	}

	params := make([]tools.Param, 0, doc.Properties.Len())
	for pair := doc.Properties.Oldest(); pair != nil; pair = pair.Next() {
		params = append(params, tools.Param{Name: pair.Key, Type: propertyType(pair.Value)})
	}
	return params, nil
}

func propertyType(raw json.RawMessage) tools.ParamType {
	var prop struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(raw, &prop); err != nil {
		return tools.TypeUnknown
	}
	switch t := prop.Type.(type) {
	case string:
		return declared(t)
	case []any:
		// nullable unions such as ["integer", "null"]
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return declared(s)
			}
		}
	}
	return tools.TypeUnknown
}

func declared(t string) tools.ParamType {
	if t == "" {
		return tools.TypeUnknown
	}
	return tools.ParamType(t)
}
