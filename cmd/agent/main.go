package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/agent"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/coerce"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/config"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/executor"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/gemini"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/ollama"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/parser"
)

type options struct {
	Config     string `long:"config" env:"PPTMAIL_CONFIG" description:"YAML config file (default ./pptmail.yaml when present)"`
	Provider   string `long:"provider" env:"MODEL_PROVIDER" choice:"gemini" choice:"ollama" description:"model backend"`
	Model      string `long:"model" env:"MODEL_NAME" description:"model name"`
	APIKey     string `long:"api-key" env:"API_KEY" description:"Gemini API key"`
	OllamaHost string `long:"ollama-host" env:"OLLAMA_HOST" description:"Ollama base URL"`
	Task       string `long:"task" env:"PPTMAIL_TASK" description:"task to run instead of reading one from stdin"`
	LogLevel   string `long:"log-level" env:"LOG_LEVEL" description:"DEBUG, INFO, WARN or ERROR"`
}

// ollamaModel is used when --provider=ollama is given without --model.
const ollamaModel = "llama3.2"

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, opts, os.Stdin, os.Stdout))
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) int {
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(out, "Configuration error: %v\n", err)
		return 2
	}
	logger.SetLevel(cfg.LogLevel)

	model, err := newModel(cfg.Model)
	if err != nil {
		fmt.Fprintf(out, "Model error: %v\n", err)
		return 2
	}

	ts, err := bootstrap(ctx, cfg.Servers, launchProcess)
	if err != nil {
		logger.Error("Failed to start tool servers", err)
		fmt.Fprintf(out, "Failed to start tool servers: %v\n", err)
		return 1
	}
	defer func() {
		if err := ts.Close(); err != nil {
			logger.Warn("Tool servers did not stop cleanly", "error", err)
		}
	}()
	logger.Info("Tool catalog ready", "tools", ts.registry.Names())

	task := strings.TrimSpace(opts.Task)
	if task == "" {
		if task, err = readTask(in, out); err != nil {
			fmt.Fprintf(out, "No task given: %v\n", err)
			return 1
		}
	}

	loop := agent.NewAgentLoop(model, ts.registry, parser.NewParser(), agent.Config{
		MaxTurns:       cfg.Agent.MaxTurns,
		ModelTimeout:   cfg.Agent.ModelTimeout,
		FinishingTools: cfg.Agent.FinishingTools,
		SuccessMarker:  cfg.Agent.SuccessMarker,
	})
	result, err := loop.Run(ctx, task)
	report(out, result, err)
	if err != nil {
		return 1
	}
	return 0
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts options) (*config.Config, error) {
	path, err := config.FindConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if opts.Provider != "" && opts.Provider != cfg.Model.Provider {
		cfg.Model.Provider = opts.Provider
		if opts.Model == "" {
			switch opts.Provider {
			case config.ProviderGemini:
				cfg.Model.Name = gemini.DefaultModel
			case config.ProviderOllama:
				cfg.Model.Name = ollamaModel
			}
		}
	}
	if opts.Model != "" {
		cfg.Model.Name = opts.Model
	}
	if opts.APIKey != "" {
		cfg.Model.APIKey = opts.APIKey
	}
	if opts.OllamaHost != "" {
		cfg.Model.OllamaHost = opts.OllamaHost
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newModel(mc config.ModelConfig) (agent.Model, error) {
	switch mc.Provider {
	case config.ProviderGemini:
		return &gemini.Model{Client: gemini.NewClient(mc.APIKey), Name: mc.Name}, nil
	case config.ProviderOllama:
		return &ollama.Model{Client: ollama.NewClient(mc.OllamaHost), Name: mc.Name}, nil
	}
	return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
}

func readTask(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter your task: ")
	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	task := strings.TrimSpace(sc.Text())
	if task == "" {
		return "", errors.New("empty task")
	}
	return task, nil
}

func report(out io.Writer, result agent.AgentLoopResult, err error) {
	var (
		coercionErr   *coerce.CoercionError
		invocationErr *executor.InvocationError
	)
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrModelTimeout):
		fmt.Fprintf(out, "The model did not answer in time (turn %d).\n", result.Turns)
		return
	case errors.Is(err, agent.ErrModelFailed):
		fmt.Fprintf(out, "The model call failed: %v\n", err)
		return
	case errors.Is(err, parser.ErrMalformed):
		fmt.Fprintf(out, "The model replied in an unexpected format: %v\n", err)
		return
	case errors.Is(err, executor.ErrUnknownTool):
		fmt.Fprintf(out, "The model asked for a tool that does not exist: %v\n", err)
		return
	case errors.As(err, &coercionErr):
		fmt.Fprintf(out, "Bad argument for parameter %q: %v\n", coercionErr.Param, err)
		return
	case errors.As(err, &invocationErr):
		fmt.Fprintf(out, "Tool %s failed: %v\n", invocationErr.Tool, invocationErr.Err)
		return
	default:
		fmt.Fprintf(out, "Session failed: %v\n", err)
		return
	}

	switch result.Status {
	case agent.StatusAnswered:
		fmt.Fprintf(out, "Final answer: %s\n", result.Answer)
	case agent.StatusFinished:
		fmt.Fprintf(out, "Task completed after %d turns.\n", result.Turns)
	case agent.StatusExhausted:
		fmt.Fprintf(out, "Stopped after %d turns without a final answer.\n", result.Turns)
	}
	for _, line := range result.Transcript {
		logger.Debug("Transcript", "session", result.SessionID, "entry", line)
	}
}
