package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// DefaultSuccessMarker is the case-insensitive text a finishing tool's
// output must contain for the session to end.
const DefaultSuccessMarker = "successfully"

// ErrUnknownTool is returned when a call names a tool with no owning session.
var ErrUnknownTool = errors.New("unknown tool")

// InvocationError wraps a failure raised by the backing tool session.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Resolver finds the session that owns a tool.
type Resolver interface {
	Resolve(name string) (tools.Session, tools.Descriptor, bool)
}

// ExecutionResult is the outcome of a single dispatch.
type ExecutionResult struct {
	Call     tools.Call   `json:"call"`
	Result   tools.Result `json:"-"`
	Skipped  bool         `json:"skipped,omitempty"`
	Finished bool         `json:"finished,omitempty"`
}

// Executor routes calls to their sessions and suppresses repeats of calls
// already dispatched in this session.
type Executor struct {
	resolver Resolver
	executed map[string]struct{}
	finish   map[string]struct{}
	marker   string
}

// Option configures an Executor.
type Option func(*Executor)

// WithFinishingTools designates tools whose successful output ends the session.
func WithFinishingTools(names ...string) Option {
	return func(e *Executor) {
		for _, n := range names {
			e.finish[n] = struct{}{}
		}
	}
}

// WithSuccessMarker overrides DefaultSuccessMarker.
func WithSuccessMarker(marker string) Option {
	return func(e *Executor) {
		if marker != "" {
			e.marker = marker
		}
	}
}

// NewExecutor creates an Executor with an empty executed-call set.
func NewExecutor(resolver Resolver, opts ...Option) *Executor {
	e := &Executor{
		resolver: resolver,
		executed: make(map[string]struct{}),
		finish:   make(map[string]struct{}),
		marker:   DefaultSuccessMarker,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executed reports whether a call with the same signature was dispatched.
func (e *Executor) Executed(call tools.Call) bool {
	_, ok := e.executed[call.Signature()]
	return ok
}

// Dispatch runs a single call. A repeat of an earlier call is skipped
// without touching any session. The signature is recorded before the
// session is awaited, so a failed call is never re-issued either.
func (e *Executor) Dispatch(ctx context.Context, call tools.Call) (ExecutionResult, error) {
	sig := call.Signature()
	if _, ok := e.executed[sig]; ok {
		return ExecutionResult{Call: call, Skipped: true}, nil
	}

	session, _, ok := e.resolver.Resolve(call.Tool)
	if !ok {
		return ExecutionResult{Call: call}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Tool)
	}

	e.executed[sig] = struct{}{}

	result, err := session.CallTool(ctx, call.Tool, call.Args)
	if err != nil {
		return ExecutionResult{Call: call}, &InvocationError{Tool: call.Tool, Err: err}
	}

	return ExecutionResult{
		Call:     call,
		Result:   result,
		Finished: e.finishes(call.Tool, result),
	}, nil
}

func (e *Executor) finishes(tool string, result tools.Result) bool {
	if _, ok := e.finish[tool]; !ok {
		return false
	}
	return result.Contains(e.marker)
}
