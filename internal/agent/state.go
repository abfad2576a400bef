package agent

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/executor"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// State is everything a session remembers: the transcript and the set of
// calls already dispatched. It is created fresh for every Run.
type State struct {
	ID         string
	Turn       int
	Transcript []string
	Executor   *executor.Executor
}

// NewState creates an empty session state.
func NewState(resolver executor.Resolver, opts ...executor.Option) *State {
	return &State{
		ID:       uuid.NewString(),
		Executor: executor.NewExecutor(resolver, opts...),
	}
}

// Record appends the call and its result to the transcript.
func (s *State) Record(call tools.Call, result tools.Result) {
	s.Transcript = append(s.Transcript,
		fmt.Sprintf("TOOL_CALL: %s args=%s", call.Tool, call.RenderArgs()),
		fmt.Sprintf("TOOL_RESULT: %s", result.String()),
	)
}
