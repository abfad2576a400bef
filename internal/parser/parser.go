package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

const (
	FunctionCallPrefix = "FUNCTION_CALL:"
	FinalAnswerPrefix  = "FINAL_ANSWER:"
)

// ErrMalformed is returned for replies that are not exactly one
// FUNCTION_CALL or FINAL_ANSWER line.
var ErrMalformed = errors.New("malformed model reply")

// Kind distinguishes the two instruction shapes.
type Kind int

const (
	KindInvocation Kind = iota + 1
	KindFinalAnswer
)

// Instruction is a parsed model reply.
type Instruction struct {
	Kind       Kind
	Invocation tools.Invocation
	Answer     string
}

// Parser turns model replies into instructions.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

var lineRegex = regexp.MustCompile(`^(FUNCTION_CALL|FINAL_ANSWER):(.*)$`)

// Parse parses a single-line model reply.
func (p *Parser) Parse(text string) (Instruction, error) {
	trimmed := strings.TrimSpace(text)
	if strings.ContainsAny(trimmed, "\r\n") {
		return Instruction{}, fmt.Errorf("%w: expected a single line, got %d", ErrMalformed, strings.Count(trimmed, "\n")+1)
	}

	match := lineRegex.FindStringSubmatch(trimmed)
	if match == nil {
		return Instruction{}, fmt.Errorf("%w: %q", ErrMalformed, trimmed)
	}

	if match[1]+":" == FinalAnswerPrefix {
		return Instruction{Kind: KindFinalAnswer, Answer: strings.TrimSpace(match[2])}, nil
	}

	parts := splitArgs(match[2])
	name := normalizeName(parts[0])
	if name == "" {
		return Instruction{}, fmt.Errorf("%w: missing tool name in %q", ErrMalformed, trimmed)
	}

	return Instruction{
		Kind:       KindInvocation,
		Invocation: tools.Invocation{Tool: name, Args: parts[1:]},
	}, nil
}

// splitArgs splits the call body on '|' and trims every token.
func splitArgs(body string) []string {
	parts := strings.Split(body, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// normalizeName strips a trailing "()" from call-style tool names.
func normalizeName(name string) string {
	return strings.TrimSuffix(name, "()")
}

// Format renders an invocation back into the wire form.
func Format(inv tools.Invocation) string {
	if len(inv.Args) == 0 {
		return FunctionCallPrefix + " " + inv.Tool
	}
	return FunctionCallPrefix + " " + inv.Tool + "|" + strings.Join(inv.Args, "|")
}
