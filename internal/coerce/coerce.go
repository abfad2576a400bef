// Package coerce maps positional argument strings onto a tool's declared
// parameter schema.
package coerce

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// CoercionError reports an argument that could not be converted to the
// declared type of its parameter.
type CoercionError struct {
	Tool  string
	Param string
	Type  tools.ParamType
	Raw   string
	Err   error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("tool %s: parameter %s: cannot convert %q to %s: %v", e.Tool, e.Param, e.Raw, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }

// Coerce consumes one raw argument per declared parameter, in order.
// Parameters left without an argument are omitted and surplus arguments are
// dropped.
func Coerce(inv tools.Invocation, desc tools.Descriptor) (tools.Call, error) {
	call := tools.Call{Tool: inv.Tool, Args: make(map[string]any, len(desc.Params))}
	raw := inv.Args

	for _, p := range desc.Params {
		if len(raw) == 0 {
			break
		}
		value := stripKey(raw[0])
		raw = raw[1:]

		converted, err := convert(value, p.Type)
		if err != nil {
			return tools.Call{}, &CoercionError{Tool: inv.Tool, Param: p.Name, Type: p.Type, Raw: value, Err: err}
		}
		call.Args[p.Name] = converted
	}

	return call, nil
}

// stripKey drops an echoed parameter name from a "key=value" token.
func stripKey(token string) string {
	if _, value, ok := strings.Cut(token, "="); ok {
		return value
	}
	return token
}

// convert parses value as the declared primitive type. Types other than
// integer and number pass through as text.
func convert(value string, typ tools.ParamType) (any, error) {
	switch typ {
	case tools.TypeInteger:
		return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case tools.TypeNumber:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	default:
		return value, nil
	}
}
