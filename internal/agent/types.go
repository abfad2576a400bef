package agent

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxTurns     = 15
	DefaultModelTimeout = 30 * time.Second
)

var (
	// ErrModelTimeout is returned when a model call exceeds the turn timeout.
	ErrModelTimeout = errors.New("model call timed out")
	// ErrModelFailed is returned when the model backend reports an error.
	ErrModelFailed = errors.New("model call failed")
)

// Model generates the next reply for a prompt. Implementations must honor
// ctx cancellation.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

func (f ModelFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Status describes how a session ended.
type Status string

const (
	StatusAnswered  Status = "answered"
	StatusFinished  Status = "finished"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// Config holds the loop's policy knobs.
type Config struct {
	MaxTurns       int
	ModelTimeout   time.Duration
	FinishingTools []string
	SuccessMarker  string
}

// AgentLoopResult represents the final result of a session.
type AgentLoopResult struct {
	SessionID  string   `json:"session_id"`
	Status     Status   `json:"status"`
	Answer     string   `json:"answer,omitempty"`
	Turns      int      `json:"turns"`
	ToolCalls  int      `json:"tool_calls_made"`
	Skipped    int      `json:"skipped_calls"`
	Transcript []string `json:"transcript,omitempty"`
}
