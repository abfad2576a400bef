package gmail

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/schema"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

// MaxUnread caps get-unread-emails.
const MaxUnread = 10

// Tools serves the Gmail tools over a Mailbox.
type Tools struct {
	mailbox Mailbox
}

func NewTools(mb Mailbox) *Tools {
	return &Tools{mailbox: mb}
}

// Register adds the Gmail tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewToolWithRawSchema("send-email",
		"Sends an email, optionally with one file attached.",
		schema.Object().
			Prop("recipient_id", tools.TypeString, "Recipient email address", nil).
			Prop("subject", tools.TypeString, "Email subject", nil).
			Prop("message", tools.TypeString, "Plain text body", nil).
			Prop("attachment_path", tools.TypeString, "Absolute path of a file to attach", nil).
			Require("recipient_id", "subject", "message").
			Raw(),
	), t.HandleSendEmail)

	s.AddTool(mcp.NewToolWithRawSchema("get-unread-emails",
		fmt.Sprintf("Lists up to %d unread emails as id | from | subject.", MaxUnread),
		schema.Object().Raw(),
	), t.HandleGetUnread)

	s.AddTool(mcp.NewToolWithRawSchema("mark-email-as-read",
		"Marks an email as read.",
		schema.Object().
			Prop("email_id", tools.TypeString, "Message id from get-unread-emails", nil).
			Require("email_id").
			Raw(),
	), t.HandleMarkRead)
}

func (t *Tools) HandleSendEmail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to, err := request.RequireString("recipient_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %v", err)), nil
	}
	attachment := strings.TrimSpace(request.GetString("attachment_path", ""))
	if attachment != "" {
		if _, err := os.Stat(attachment); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Error: attachment not found: %s", attachment)), nil
		}
	}

	raw, err := ComposeMessage(ComposeOptions{
		To:             []string{to},
		Subject:        request.GetString("subject", ""),
		Body:           request.GetString("message", ""),
		AttachmentPath: attachment,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error composing email: %v", err)), nil
	}

	id, err := t.mailbox.Send(ctx, raw)
	if err != nil {
		logger.Error("Failed to send email", err, "to", to)
		return mcp.NewToolResultError(fmt.Sprintf("Error sending email: %v", err)), nil
	}
	logger.Info("Email sent", "to", to, "id", id, "attachment", attachment)
	return mcp.NewToolResultText("Email sent successfully. Message ID: " + id), nil
}

func (t *Tools) HandleGetUnread(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unread, err := t.mailbox.ListUnread(ctx, MaxUnread)
	if err != nil {
		logger.Error("Failed to list unread emails", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error listing unread emails: %v", err)), nil
	}
	if len(unread) == 0 {
		return mcp.NewToolResultText("No unread emails"), nil
	}
	if len(unread) > MaxUnread {
		unread = unread[:MaxUnread]
	}

	lines := make([]string, 0, len(unread))
	for _, m := range unread {
		lines = append(lines, fmt.Sprintf("%s | %s | %s", m.ID, m.From, m.Subject))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (t *Tools) HandleMarkRead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("email_id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("Error: email_id is required"), nil
	}
	if err := t.mailbox.MarkRead(ctx, id); err != nil {
		logger.Error("Failed to mark email as read", err, "id", id)
		return mcp.NewToolResultError(fmt.Sprintf("Error marking email as read: %v", err)), nil
	}
	return mcp.NewToolResultText("Email marked as read. Message ID: " + id), nil
}
