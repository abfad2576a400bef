package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/schema"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// ClientName is reported to servers during initialize.
const ClientName = "pptmail-agent"

// ErrClosed is returned for requests pending when the server's output ends.
var ErrClosed = errors.New("mcp connection closed")

const closeGrace = 5 * time.Second

// Command describes how to launch a stdio server.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// Client is one stdio MCP session. Requests may be issued concurrently and
// are correlated with responses by ID.
type Client struct {
	name string

	w       io.Writer
	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan JSONRPCResponse
	readErr error
	done    chan struct{}

	closer    func() error
	closeOnce sync.Once
	closeErr  error
}

// NewClient speaks JSON-RPC over an existing reader/writer pair.
func NewClient(name string, r io.Reader, w io.Writer) *Client {
	c := &Client{
		name:    name,
		w:       w,
		pending: make(map[int64]chan JSONRPCResponse),
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// Launch starts the server process and returns a client bound to its stdio.
// The process outlives the call; stop it with Close.
func Launch(name string, cmd Command) (*Client, error) {
	proc := exec.Command(cmd.Path, cmd.Args...)
	proc.Dir = cmd.Dir
	proc.Env = append(os.Environ(), cmd.Env...)
	proc.Stderr = os.Stderr

	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin for %s: %w", name, err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout for %s: %w", name, err)
	}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	logger.Info("Started tool server", "server", name, "command", cmd.Path, "pid", proc.Process.Pid)

	c := NewClient(name, stdout, stdin)
	c.closer = func() error {
		_ = stdin.Close()
		waited := make(chan error, 1)
		go func() { waited <- proc.Wait() }()
		select {
		case err := <-waited:
			return err
		case <-time.After(closeGrace):
			logger.Warn("Tool server did not exit, killing", "server", name)
			_ = proc.Process.Kill()
			return <-waited
		}
	}
	return c, nil
}

// Name returns the configured server name.
func (c *Client) Name() string {
	return c.name
}

// Initialize performs the MCP handshake.
func (c *Client) Initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": mcpgo.LATEST_PROTOCOL_VERSION,
		"capabilities":    map[string]any{},
		"clientInfo":      mcpgo.Implementation{Name: ClientName, Version: "1.0.0"},
	}
	var result struct {
		ProtocolVersion string               `json:"protocolVersion"`
		ServerInfo      mcpgo.Implementation `json:"serverInfo"`
	}
	if err := c.call(ctx, MethodInitialize, params, &result); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", c.name, err)
	}
	if err := c.notify(MethodInitialized); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", c.name, err)
	}
	logger.Info("Initialized tool server",
		"server", c.name,
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion,
	)
	return nil
}

// ListTools returns every tool the server advertises, following cursors.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var all []Tool
	cursor := ""
	for {
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}
		var page listToolsResult
		if err := c.call(ctx, MethodToolsList, params, &page); err != nil {
			return nil, fmt.Errorf("failed to list tools on %s: %w", c.name, err)
		}
		all = append(all, page.Tools...)
		if page.NextCursor == "" || page.NextCursor == cursor {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// Descriptors lists the server's tools with parameters in declared order.
func (c *Client) Descriptors(ctx context.Context) ([]tools.Descriptor, error) {
	listed, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	descriptors := make([]tools.Descriptor, 0, len(listed))
	for _, t := range listed {
		params, err := schema.Params(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s on %s: %w", t.Name, c.name, err)
		}
		description := tools.NoDescription
		if t.Description != nil {
			description = *t.Description
		}
		descriptors = append(descriptors, tools.Descriptor{
			Name:        t.Name,
			Description: description,
			Params:      params,
		})
	}
	return descriptors, nil
}

// CallTool implements tools.Session. Tool-level errors (isError) are still
// results; only transport and protocol failures are returned as errors.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (tools.Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	var raw json.RawMessage
	if err := c.call(ctx, MethodToolsCall, callToolParams{Name: name, Arguments: args}, &raw); err != nil {
		return tools.Result{}, err
	}

	var res callToolResult
	if err := json.Unmarshal(raw, &res); err != nil || res.Content == nil {
		return tools.Opaque(string(raw)), nil
	}
	lines := make([]string, 0, len(res.Content))
	for _, item := range res.Content {
		if item.Type == "text" {
			lines = append(lines, item.Text)
		}
	}
	if res.IsError {
		logger.Warn("Tool reported an error", "server", c.name, "tool", name)
	}
	return tools.Text(lines...), nil
}

// Close ends the session and stops the server process if Launch started it.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.closer != nil {
			c.closeErr = c.closer()
		}
	})
	return c.closeErr
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	id := c.nextID.Add(1)
	ch := make(chan JSONRPCResponse, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(&id, method, params); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		return decode(method, resp, result)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		// the reader may have delivered just before stopping
		select {
		case resp := <-ch:
			return decode(method, resp, result)
		default:
		}
		c.mu.Lock()
		readErr := c.readErr
		c.mu.Unlock()
		if readErr != nil {
			return fmt.Errorf("%s: %w: %w", method, ErrClosed, readErr)
		}
		return fmt.Errorf("%s: %w", method, ErrClosed)
	}
}

func (c *Client) notify(method string) error {
	return c.send(nil, method, nil)
}

func (c *Client) send(id *int64, method string, params any) error {
	req := JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode %s params: %w", method, err)
		}
		req.Params = data
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", method, c.name, err)
	}
	return nil
}

func (c *Client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp JSONRPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logger.Warn("Discarding unparseable server output", "server", c.name, "error", err)
			continue
		}
		if resp.Method != "" || len(resp.ID) == 0 {
			logger.Debug("Ignoring server message", "server", c.name, "method", resp.Method)
			continue
		}
		var id int64
		if err := json.Unmarshal(resp.ID, &id); err != nil {
			logger.Warn("Discarding response with foreign id", "server", c.name, "id", string(resp.ID))
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	c.mu.Lock()
	c.readErr = scanner.Err()
	c.mu.Unlock()
	close(c.done)
}

func decode(method string, resp JSONRPCResponse, result any) error {
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil {
		return nil
	}
	if raw, ok := result.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], resp.Result...)
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: failed to decode result: %w", method, err)
	}
	return nil
}
