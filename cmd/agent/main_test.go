package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/agent"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/coerce"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/config"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/executor"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/parser"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

type fakeServer struct {
	name        string
	descriptors []tools.Descriptor
	delay       time.Duration
	initErr     error

	mu     sync.Mutex
	calls  []string
	closed bool
}

func (f *fakeServer) Name() string { return f.name }

func (f *fakeServer) Initialize(ctx context.Context) error {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.initErr
}

func (f *fakeServer) Descriptors(ctx context.Context) ([]tools.Descriptor, error) {
	return f.descriptors, nil
}

func (f *fakeServer) CallTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return tools.Text(fmt.Sprintf("%s handled %s", f.name, name)), nil
}

func (f *fakeServer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fakeLauncher(servers map[string]*fakeServer) launchFunc {
	return func(cfg config.ServerConfig) (toolServer, error) {
		srv, ok := servers[cfg.Name]
		if !ok {
			return nil, errors.New("executable not found")
		}
		return srv, nil
	}
}

func TestBootstrapRegistersInConfigOrder(t *testing.T) {
	// the first server answers last; its tool must still be shadowed by the second
	ppt := &fakeServer{
		name:  "powerpoint",
		delay: 50 * time.Millisecond,
		descriptors: []tools.Descriptor{
			{Name: "open_powerpoint"},
			{Name: "send-email"},
		},
	}
	mail := &fakeServer{
		name:        "gmail",
		descriptors: []tools.Descriptor{{Name: "send-email"}},
	}
	servers := []config.ServerConfig{{Name: "powerpoint"}, {Name: "gmail"}}

	ts, err := bootstrap(context.Background(), servers, fakeLauncher(map[string]*fakeServer{
		"powerpoint": ppt,
		"gmail":      mail,
	}))
	require.NoError(t, err)

	var names []string
	for _, d := range ts.registry.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"open_powerpoint", "send-email", "send-email"}, names)

	session, _, ok := ts.registry.Resolve("send-email")
	require.True(t, ok)
	res, err := session.CallTool(context.Background(), "send-email", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gmail handled send-email"}, res.Lines())

	require.NoError(t, ts.Close())
	assert.True(t, ppt.closed)
	assert.True(t, mail.closed)
}

func TestBootstrapFailureStopsStartedServers(t *testing.T) {
	ppt := &fakeServer{name: "powerpoint"}
	mail := &fakeServer{name: "gmail", initErr: errors.New("bad credentials")}

	_, err := bootstrap(context.Background(),
		[]config.ServerConfig{{Name: "powerpoint"}, {Name: "gmail"}},
		fakeLauncher(map[string]*fakeServer{"powerpoint": ppt, "gmail": mail}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize gmail")
	assert.True(t, ppt.closed)
	assert.True(t, mail.closed)

	_, err = bootstrap(context.Background(),
		[]config.ServerConfig{{Name: "missing"}},
		fakeLauncher(nil),
	)
	assert.ErrorContains(t, err, "start missing")
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_KEY", "")

	t.Run("defaults need an api key", func(t *testing.T) {
		_, err := loadConfig(options{})
		assert.ErrorContains(t, err, "api_key")
	})

	t.Run("flags win", func(t *testing.T) {
		cfg, err := loadConfig(options{APIKey: "k", Model: "gemini-1.5-pro", LogLevel: "DEBUG"})
		require.NoError(t, err)
		assert.Equal(t, "k", cfg.Model.APIKey)
		assert.Equal(t, "gemini-1.5-pro", cfg.Model.Name)
		assert.Equal(t, "DEBUG", cfg.LogLevel)
	})

	t.Run("switching provider picks its default model", func(t *testing.T) {
		cfg, err := loadConfig(options{Provider: config.ProviderOllama, OllamaHost: "http://gpu:11434"})
		require.NoError(t, err)
		assert.Equal(t, ollamaModel, cfg.Model.Name)
		assert.Equal(t, "http://gpu:11434", cfg.Model.OllamaHost)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.yaml")
		require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
			"servers:",
			"  - name: powerpoint",
			"    command: ppt-mcp-server",
			"model:",
			"  provider: ollama",
			"  name: qwen2.5",
			"agent:",
			"  max_turns: 5",
			"",
		}, "\n")), 0o644))

		cfg, err := loadConfig(options{Config: path})
		require.NoError(t, err)
		assert.Len(t, cfg.Servers, 1)
		assert.Equal(t, "qwen2.5", cfg.Model.Name)
		assert.Equal(t, 5, cfg.Agent.MaxTurns)
		assert.Equal(t, 30*time.Second, cfg.Agent.ModelTimeout)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(options{Config: "nope.yaml"})
		assert.Error(t, err)
	})
}

func TestNewModel(t *testing.T) {
	m, err := newModel(config.ModelConfig{Provider: config.ProviderOllama, Name: "llama3.2"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = newModel(config.ModelConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestReadTask(t *testing.T) {
	var out bytes.Buffer
	task, err := readTask(strings.NewReader("  draw a box and email it\nignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "draw a box and email it", task)
	assert.Equal(t, "Enter your task: ", out.String())

	_, err = readTask(strings.NewReader(""), &out)
	assert.Error(t, err)

	_, err = readTask(strings.NewReader("   \n"), &out)
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	tests := []struct {
		name   string
		result agent.AgentLoopResult
		err    error
		want   string
	}{
		{
			name:   "answered",
			result: agent.AgentLoopResult{Status: agent.StatusAnswered, Answer: "done"},
			want:   "Final answer: done\n",
		},
		{
			name:   "finished",
			result: agent.AgentLoopResult{Status: agent.StatusFinished, Turns: 4},
			want:   "Task completed after 4 turns.\n",
		},
		{
			name:   "exhausted",
			result: agent.AgentLoopResult{Status: agent.StatusExhausted, Turns: 15},
			want:   "Stopped after 15 turns without a final answer.\n",
		},
		{
			name:   "timeout",
			result: agent.AgentLoopResult{Status: agent.StatusFailed, Turns: 2},
			err:    agent.ErrModelTimeout,
			want:   "The model did not answer in time (turn 2).\n",
		},
		{
			name: "unknown tool",
			err:  fmt.Errorf("%w: fly", executor.ErrUnknownTool),
			want: "The model asked for a tool that does not exist: unknown tool: fly\n",
		},
		{
			name: "tool failure",
			err:  &executor.InvocationError{Tool: "send-email", Err: errors.New("broken pipe")},
			want: "Tool send-email failed: broken pipe\n",
		},
		{
			name: "malformed",
			err:  fmt.Errorf("%w: hello", parser.ErrMalformed),
			want: "The model replied in an unexpected format: malformed model reply: hello\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			report(&out, tt.result, tt.err)
			assert.Equal(t, tt.want, out.String())
		})
	}

	var out bytes.Buffer
	report(&out, agent.AgentLoopResult{}, &coerce.CoercionError{Param: "x", Raw: "ten", Type: tools.TypeInteger, Err: errors.New("invalid syntax")})
	assert.True(t, strings.HasPrefix(out.String(), `Bad argument for parameter "x": `))
}
