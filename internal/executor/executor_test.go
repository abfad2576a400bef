package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/registry"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

type recordingSession struct {
	calls  []tools.Call
	result tools.Result
	err    error
}

func (s *recordingSession) CallTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	s.calls = append(s.calls, tools.Call{Tool: name, Args: args})
	return s.result, s.err
}

func newExecutor(t *testing.T, s *recordingSession, opts ...Option) *Executor {
	t.Helper()
	r := registry.New()
	r.Register(s, []tools.Descriptor{{Name: "draw_rectangle"}, {Name: "send-email"}})
	return NewExecutor(r, opts...)
}

func TestDispatchDedup(t *testing.T) {
	s := &recordingSession{result: tools.Text("Rectangle drawn")}
	e := newExecutor(t, s)
	ctx := context.Background()

	first := tools.Call{Tool: "draw_rectangle", Args: map[string]any{"x": int64(1), "y": int64(2)}}
	res, err := e.Dispatch(ctx, first)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, []string{"Rectangle drawn"}, res.Result.Lines())

	t.Run("identical call is skipped", func(t *testing.T) {
		again := tools.Call{Tool: "draw_rectangle", Args: map[string]any{"y": int64(2), "x": int64(1)}}
		res, err := e.Dispatch(ctx, again)
		require.NoError(t, err)
		assert.True(t, res.Skipped)
		assert.Len(t, s.calls, 1)
	})

	t.Run("different arguments run", func(t *testing.T) {
		res, err := e.Dispatch(ctx, tools.Call{Tool: "draw_rectangle", Args: map[string]any{"x": int64(5)}})
		require.NoError(t, err)
		assert.False(t, res.Skipped)
		assert.Len(t, s.calls, 2)
	})
}

func TestDispatchUnknownTool(t *testing.T) {
	s := &recordingSession{}
	e := newExecutor(t, s)

	call := tools.Call{Tool: "format_disk"}
	_, err := e.Dispatch(context.Background(), call)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Empty(t, s.calls)
	assert.False(t, e.Executed(call))
}

func TestDispatchInvocationError(t *testing.T) {
	boom := errors.New("pipe closed")
	s := &recordingSession{err: boom}
	e := newExecutor(t, s)
	call := tools.Call{Tool: "draw_rectangle"}

	_, err := e.Dispatch(context.Background(), call)
	var ierr *InvocationError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "draw_rectangle", ierr.Tool)
	assert.ErrorIs(t, err, boom)

	// recorded before the session was awaited
	assert.True(t, e.Executed(call))
}

func TestDispatchFinishingTool(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		result tools.Result
		want   bool
	}{
		{name: "finishing tool with success text", tool: "send-email", result: tools.Text("Email sent Successfully. Message ID: 1"), want: true},
		{name: "finishing tool with failure text", tool: "send-email", result: tools.Text("Error: quota exceeded"), want: false},
		{name: "other tool with success text", tool: "draw_rectangle", result: tools.Text("done successfully"), want: false},
		{name: "opaque payload checked as one line", tool: "send-email", result: tools.Opaque("sent successfully"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &recordingSession{result: tt.result}
			e := newExecutor(t, s, WithFinishingTools("send-email", "send_email__via_outlook_with_attachment"))
			res, err := e.Dispatch(context.Background(), tools.Call{Tool: tt.tool})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Finished)
		})
	}
}

func TestSuccessMarker(t *testing.T) {
	s := &recordingSession{result: tools.Text("DELIVERED")}
	e := newExecutor(t, s, WithFinishingTools("send-email"), WithSuccessMarker("delivered"))
	res, err := e.Dispatch(context.Background(), tools.Call{Tool: "send-email"})
	require.NoError(t, err)
	assert.True(t, res.Finished)
}
