package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/coerce"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/executor"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/parser"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/prompts"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/registry"
)

// AgentLoop orchestrates the tool-calling loop.
type AgentLoop struct {
	model    Model
	registry *registry.Registry
	parser   *parser.Parser
	prompts  *prompts.Builder
	config   Config
}

// NewAgentLoop creates a new AgentLoop over the tools in reg.
func NewAgentLoop(model Model, reg *registry.Registry, p *parser.Parser, cfg Config) *AgentLoop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	return &AgentLoop{
		model:    model,
		registry: reg,
		parser:   p,
		prompts:  prompts.NewBuilder(reg.Descriptors()),
		config:   cfg,
	}
}

// Run executes one session for task. Exhausting the turn budget is not an
// error. Every fatal condition ends the session immediately and is returned
// together with the partial result.
func (a *AgentLoop) Run(ctx context.Context, task string) (AgentLoopResult, error) {
	state := NewState(a.registry,
		executor.WithFinishingTools(a.config.FinishingTools...),
		executor.WithSuccessMarker(a.config.SuccessMarker),
	)
	log := logger.With("session", state.ID)

	result := AgentLoopResult{SessionID: state.ID}
	fail := func(err error) (AgentLoopResult, error) {
		result.Status = StatusFailed
		result.Transcript = state.Transcript
		log.Error("Session failed", slog.Any("error", err), "turn", state.Turn)
		return result, err
	}

	for i := 0; i < a.config.MaxTurns; i++ {
		state.Turn = i + 1
		result.Turns = state.Turn
		log.Info("Agent iteration", "turn", state.Turn, "max_turns", a.config.MaxTurns)

		prompt := a.prompts.Build(task, state.Transcript)
		log.Debug("Prompt", "prompt", prompt)

		reply, err := a.complete(ctx, prompt)
		if err != nil {
			return fail(err)
		}
		log.Info("Model reply", "reply", reply)

		ins, err := a.parser.Parse(reply)
		if err != nil {
			return fail(err)
		}

		if ins.Kind == parser.KindFinalAnswer {
			result.Status = StatusAnswered
			result.Answer = ins.Answer
			result.Transcript = state.Transcript
			log.Info("Final answer", "answer", ins.Answer)
			return result, nil
		}

		inv := ins.Invocation
		_, desc, ok := a.registry.Resolve(inv.Tool)
		if !ok {
			return fail(fmt.Errorf("%w: %s", executor.ErrUnknownTool, inv.Tool))
		}

		call, err := coerce.Coerce(inv, desc)
		if err != nil {
			return fail(err)
		}

		log.Info("Invoking tool", "tool", call.Tool, "args", call.RenderArgs())
		res, err := state.Executor.Dispatch(ctx, call)
		if err != nil {
			return fail(err)
		}
		if res.Skipped {
			// the model is not told; the turn is spent
			result.Skipped++
			log.Warn("Skipping duplicate tool call", "signature", call.Signature())
			continue
		}

		result.ToolCalls++
		state.Record(call, res.Result)
		log.Info("Tool result", "tool", call.Tool, "result", res.Result.String())

		if res.Finished {
			result.Status = StatusFinished
			result.Transcript = state.Transcript
			log.Info("Finishing tool succeeded, stopping", "tool", call.Tool)
			return result, nil
		}
	}

	result.Status = StatusExhausted
	result.Transcript = state.Transcript
	log.Info("Turn budget exhausted", "turns", result.Turns)
	return result, nil
}

// complete calls the model under the turn timeout. The wait is bounded even
// if the model ignores ctx.
func (a *AgentLoop) complete(ctx context.Context, prompt string) (string, error) {
	mctx, cancel := context.WithTimeout(ctx, a.config.ModelTimeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := a.model.Complete(mctx, prompt)
		done <- reply{text: text, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return r.text, nil
		}
		if errors.Is(mctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s: %v", ErrModelTimeout, a.config.ModelTimeout, r.err)
		}
		return "", fmt.Errorf("%w: %w", ErrModelFailed, r.err)
	case <-mctx.Done():
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrModelFailed, ctx.Err())
		}
		return "", fmt.Errorf("%w after %s", ErrModelTimeout, a.config.ModelTimeout)
	}
}
