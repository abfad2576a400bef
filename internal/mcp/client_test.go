package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/schema"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// pipeServer connects a client to an in-process mcp-go stdio server.
func pipeServer(t *testing.T, s *server.MCPServer) *Client {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.NewStdioServer(s).Listen(ctx, serverIn, serverOut)
		_ = serverOut.Close()
	}()
	t.Cleanup(func() {
		cancel()
		_ = clientOut.Close()
		<-done
	})
	return NewClient("test", clientIn, clientOut)
}

func mailServer() *server.MCPServer {
	s := server.NewMCPServer("mail", "0.1.0")
	s.AddTool(
		mcpgo.NewToolWithRawSchema("send-email", "Sends an email", schema.Object().
			Prop("recipient_id", tools.TypeString, "", nil).
			Prop("subject", tools.TypeString, "", nil).
			Prop("message", tools.TypeString, "", nil).
			Prop("attachment_path", tools.TypeString, "", nil).
			Require("recipient_id", "subject", "message").
			Raw()),
		func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			to, err := req.RequireString("recipient_id")
			if err != nil {
				return mcpgo.NewToolResultError(err.Error()), nil
			}
			return mcpgo.NewToolResultText("Email sent successfully to " + to), nil
		},
	)
	return s
}

func TestClientAgainstServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := pipeServer(t, mailServer())
	require.NoError(t, c.Initialize(ctx))

	descriptors, err := c.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "send-email", descriptors[0].Name)
	assert.Equal(t, []tools.Param{
		{Name: "recipient_id", Type: tools.TypeString},
		{Name: "subject", Type: tools.TypeString},
		{Name: "message", Type: tools.TypeString},
		{Name: "attachment_path", Type: tools.TypeString},
	}, descriptors[0].Params)

	res, err := c.CallTool(ctx, "send-email", map[string]any{"recipient_id": "a@b.c", "subject": "s", "message": "m"})
	require.NoError(t, err)
	assert.True(t, res.IsText())
	assert.Equal(t, []string{"Email sent successfully to a@b.c"}, res.Lines())

	// tool-level failures come back as results
	res, err = c.CallTool(ctx, "send-email", nil)
	require.NoError(t, err)
	assert.False(t, res.Contains("successfully"))

	_, err = c.CallTool(ctx, "no-such-tool", nil)
	assert.Error(t, err)
}

// scriptServer answers each request with the reply registered for its
// method, after first emitting a notification to check it is ignored.
func scriptServer(t *testing.T, replies map[string]string) *Client {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	go func() {
		defer serverOut.Close()
		scanner := bufio.NewScanner(serverIn)
		for scanner.Scan() {
			var req JSONRPCRequest
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.ID == nil {
				continue
			}
			fmt.Fprintln(serverOut, `{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info"}}`)
			reply, ok := replies[req.Method]
			if !ok {
				return
			}
			fmt.Fprintf(serverOut, `{"jsonrpc":"2.0","id":%d,%s}`+"\n", *req.ID, reply)
		}
	}()
	t.Cleanup(func() { _ = clientOut.Close() })
	return NewClient("script", clientIn, clientOut)
}

func TestCallToolResultShapes(t *testing.T) {
	ctx := context.Background()

	t.Run("no content is opaque", func(t *testing.T) {
		c := scriptServer(t, map[string]string{MethodToolsCall: `"result":{"status":"ok"}`})
		res, err := c.CallTool(ctx, "open_powerpoint", nil)
		require.NoError(t, err)
		assert.False(t, res.IsText())
		assert.Equal(t, `{"status":"ok"}`, res.String())
	})

	t.Run("mixed content", func(t *testing.T) {
		c := scriptServer(t, map[string]string{
			MethodToolsCall: `"result":{"content":[{"type":"text","text":"one"},{"type":"image","data":"AA=="},{"type":"text","text":"two"}]}`,
		})
		res, err := c.CallTool(ctx, "x", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, res.Lines())
	})

	t.Run("empty content is empty text", func(t *testing.T) {
		c := scriptServer(t, map[string]string{MethodToolsCall: `"result":{"content":[]}`})
		res, err := c.CallTool(ctx, "x", nil)
		require.NoError(t, err)
		assert.True(t, res.IsText())
		assert.Empty(t, res.Lines())
	})

	t.Run("rpc error", func(t *testing.T) {
		c := scriptServer(t, map[string]string{MethodToolsCall: `"error":{"code":-32602,"message":"tool not found"}`})
		_, err := c.CallTool(ctx, "x", nil)
		var rpcErr *JSONRPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, -32602, rpcErr.Code)
	})

	t.Run("server exits mid-request", func(t *testing.T) {
		c := scriptServer(t, map[string]string{})
		_, err := c.CallTool(ctx, "x", nil)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestListToolsFollowsCursor(t *testing.T) {
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()
	t.Cleanup(func() { _ = clientOut.Close() })

	go func() {
		defer serverOut.Close()
		scanner := bufio.NewScanner(serverIn)
		for scanner.Scan() {
			var req JSONRPCRequest
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil || req.ID == nil {
				continue
			}
			var params struct {
				Cursor string `json:"cursor"`
			}
			_ = json.Unmarshal(req.Params, &params)
			if params.Cursor == "" {
				fmt.Fprintf(serverOut, `{"jsonrpc":"2.0","id":%d,"result":{"tools":[{"name":"a","inputSchema":{}}],"nextCursor":"p2"}}`+"\n", *req.ID)
			} else {
				fmt.Fprintf(serverOut, `{"jsonrpc":"2.0","id":%d,"result":{"tools":[{"name":"b","inputSchema":{}}]}}`+"\n", *req.ID)
			}
		}
	}()

	c := NewClient("paged", clientIn, clientOut)
	listed, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a", listed[0].Name)
	assert.Equal(t, "b", listed[1].Name)
}

func TestDescriptorsDescriptionDefault(t *testing.T) {
	c := scriptServer(t, map[string]string{
		MethodToolsList: `"result":{"tools":[` +
			`{"name":"missing","inputSchema":{"properties":{"tags":{"type":"array"}}}},` +
			`{"name":"empty","description":"","inputSchema":{}},` +
			`{"name":"given","description":"Does things","inputSchema":{}}]}`,
	})

	descriptors, err := c.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 3)
	assert.Equal(t, tools.NoDescription, descriptors[0].Description)
	assert.Equal(t, []tools.Param{{Name: "tags", Type: tools.ParamType("array")}}, descriptors[0].Params)
	assert.Equal(t, "", descriptors[1].Description)
	assert.Equal(t, "Does things", descriptors[2].Description)
}

func TestCallHonorsContext(t *testing.T) {
	// a server that never answers
	clientIn, _ := io.Pipe()
	c := NewClient("silent", clientIn, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.CallTool(ctx, "x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
