package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "pptmail.yaml"

// Config is the agent's configuration.
type Config struct {
	Servers  []ServerConfig `yaml:"servers"`
	Model    ModelConfig    `yaml:"model"`
	Agent    AgentConfig    `yaml:"agent"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig describes one stdio tool server to launch.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
}

// Environ renders Env as KEY=VALUE pairs in key order.
func (s ServerConfig) Environ() []string {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+s.Env[k])
	}
	return env
}

// ModelConfig selects the model backend.
type ModelConfig struct {
	Provider   string `yaml:"provider"`
	Name       string `yaml:"name"`
	APIKey     string `yaml:"api_key"`
	OllamaHost string `yaml:"ollama_host"`
}

// AgentConfig holds loop policy.
type AgentConfig struct {
	MaxTurns       int           `yaml:"max_turns"`
	ModelTimeout   time.Duration `yaml:"model_timeout"`
	FinishingTools []string      `yaml:"finishing_tools"`
	SuccessMarker  string        `yaml:"success_marker"`
}

// FindConfig returns explicit if set, otherwise DefaultFile when it exists.
// An empty result means no file; use Default.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, nil
	}
	return "", nil
}

// Load reads a YAML config over Default. Environment variables are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Default reproduces the stock wiring: the PowerPoint and Gmail servers,
// Gemini as the model and a 15 turn budget.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Servers: []ServerConfig{
			{
				Name:    "powerpoint",
				Command: "ppt-mcp-server",
				Dir:     cwd,
			},
			{
				Name:    "gmail",
				Command: "gmail-mcp-server",
				Args: []string{
					"--creds-file-path", absPath(envOr("GMAIL_CREDS_PATH", "credentials.json")),
					"--token-path", absPath(envOr("GMAIL_TOKEN_PATH", "token.json")),
				},
				Dir: cwd,
			},
		},
		Model: ModelConfig{
			Provider: ProviderGemini,
			Name:     "gemini-2.0-flash",
			APIKey:   os.Getenv("API_KEY"),
		},
		Agent: AgentConfig{
			MaxTurns:       15,
			ModelTimeout:   30 * time.Second,
			FinishingTools: []string{"send_email__via_outlook_with_attachment", "send-email"},
			SuccessMarker:  "successfully",
		},
		LogLevel: "INFO",
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Servers) == 0 {
		errs = append(errs, errors.New("no tool servers configured"))
	}
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("servers[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("servers[%d]: command is required", i))
		}
	}
	if c.Agent.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_turns must be positive, got %d", c.Agent.MaxTurns))
	}
	if c.Agent.ModelTimeout <= 0 {
		errs = append(errs, fmt.Errorf("agent.model_timeout must be positive, got %s", c.Agent.ModelTimeout))
	}
	switch c.Model.Provider {
	case ProviderGemini:
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("model.api_key is required for gemini (set API_KEY)"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", c.Model.Provider))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	return errors.Join(errs...)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
