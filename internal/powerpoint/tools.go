package powerpoint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/eriksjaastad/pptmail-mcp-go/internal/logger"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/prompts"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/sandbox"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/schema"
	"github.com/eriksjaastad/pptmail-mcp-go/internal/tools"
)

const notOpenMessage = "Error: PowerPoint is not open. Please run open_powerpoint() first."

// Tools serves the PowerPoint tools over one Application.
type Tools struct {
	app *Application
	now func() time.Time
}

// NewTools creates the tool set. Presentations are written inside sb.
func NewTools(sb *sandbox.Sandbox) *Tools {
	return &Tools{
		app: NewApplication(sb.SafeWrite),
		now: time.Now,
	}
}

// Register adds the tools, the greeting resource and the prompts to s.
// Schema properties are declared in positional-argument order.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewToolWithRawSchema("open_powerpoint",
		"Opens PowerPoint and creates a new blank presentation with one blank slide.",
		schema.Object().Raw(),
	), t.HandleOpen)

	s.AddTool(mcp.NewToolWithRawSchema("draw_rectangle",
		"Draws a rectangle on the current slide. Coordinates and size are in points.",
		rectangleSchema(schema.Object()).Raw(),
	), t.HandleDrawRectangle)

	s.AddTool(mcp.NewToolWithRawSchema("draw_rectangle_with_text",
		"Draws a rectangle on the current slide with text centered inside it.",
		rectangleSchema(schema.Object().Prop("text", tools.TypeString, "Text to display in the center of the rectangle", nil)).
			Require("text").
			Raw(),
	), t.HandleDrawRectangleWithText)

	s.AddTool(mcp.NewToolWithRawSchema("save_presentation",
		"Saves the current presentation as .pptx. Relative names are saved under the output directory; absolute paths must be inside the output directory.",
		schema.Object().
			Prop("filename", tools.TypeString, "File name, or a path inside the output directory", nil).
			Prop("add_timestamp", tools.TypeBoolean, "Append _YYYYMMDD_HHMMSS to the name (default: true)", true).
			Require("filename").
			Raw(),
	), t.HandleSave)

	s.AddTool(mcp.NewToolWithRawSchema("close_powerpoint",
		"Closes PowerPoint, optionally saving the presentation first.",
		schema.Object().
			Prop("save", tools.TypeBoolean, "Save before closing (default: false)", false).
			Prop("filename", tools.TypeString, "File to save to, inside the output directory; defaults to the last saved path", nil).
			Raw(),
	), t.HandleClose)

	s.AddResourceTemplate(mcp.NewResourceTemplate("greeting://{name}", "greeting",
		mcp.WithTemplateDescription("Get a personalized greeting"),
		mcp.WithTemplateMIMEType("text/plain"),
	), HandleGreeting)

	s.AddPrompt(mcp.NewPrompt("review_code",
		mcp.WithPromptDescription("Ask for a code review"),
		mcp.WithArgument("code", mcp.RequiredArgument(), mcp.ArgumentDescription("Code to review")),
	), HandleReviewCode)

	s.AddPrompt(mcp.NewPrompt("debug_error",
		mcp.WithPromptDescription("Start a debugging conversation about an error"),
		mcp.WithArgument("error", mcp.RequiredArgument(), mcp.ArgumentDescription("Error message")),
	), HandleDebugError)
}

func rectangleSchema(s *schema.Schema) *schema.Schema {
	return s.
		Prop("x", tools.TypeInteger, "X coordinate of the top-left corner in points (default: 100)", 100).
		Prop("y", tools.TypeInteger, "Y coordinate of the top-left corner in points (default: 100)", 100).
		Prop("width", tools.TypeInteger, "Width of the rectangle in points (default: 200)", 200).
		Prop("height", tools.TypeInteger, "Height of the rectangle in points (default: 100)", 100)
}

func (t *Tools) HandleOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := t.app.Open()
	logger.Info("New blank presentation created", "open", n)
	return mcp.NewToolResultText(fmt.Sprintf("PowerPoint opened successfully with a new blank presentation (Total open: %d)", n)), nil
}

func (t *Tools) HandleDrawRectangle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, y, w, h := rect(request)
	if _, err := t.app.AddRectangle(float64(x), float64(y), float64(w), float64(h), ""); err != nil {
		return drawError("Error drawing rectangle", err), nil
	}
	logger.Info("Rectangle drawn", "x", x, "y", y, "width", w, "height", h)
	return mcp.NewToolResultText(fmt.Sprintf("Rectangle drawn at (%d, %d) with size %dx%d", x, y, w, h)), nil
}

func (t *Tools) HandleDrawRectangleWithText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error drawing rectangle with text: %v", err)), nil
	}
	x, y, w, h := rect(request)
	if _, err := t.app.AddRectangle(float64(x), float64(y), float64(w), float64(h), text); err != nil {
		return drawError("Error drawing rectangle with text", err), nil
	}
	logger.Info("Rectangle with text drawn", "text", text, "x", x, "y", y)
	return mcp.NewToolResultText(fmt.Sprintf("Rectangle with text '%s' created at (%d, %d) with size %dx%d", text, x, y, w, h)), nil
}

func (t *Tools) HandleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := t.app.Active(); !ok {
		return mcp.NewToolResultError(notOpenMessage), nil
	}
	filename := strings.TrimSpace(request.GetString("filename", ""))
	if filename == "" {
		return mcp.NewToolResultError("Error saving presentation: filename is required"), nil
	}

	path, err := t.app.SaveAs(t.outputName(filename, request.GetBool("add_timestamp", true)))
	if err != nil {
		logger.Error("Failed to save presentation", err, "filename", filename)
		if errors.Is(err, sandbox.ErrOutsideRoot) {
			return mcp.NewToolResultError(outsideMessage("Error saving presentation", filename)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Error saving presentation: %v", err)), nil
	}
	logger.Info("Presentation saved", "path", path)
	return mcp.NewToolResultText("Presentation saved successfully to: " + path), nil
}

func (t *Tools) HandleClose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename := strings.TrimSpace(request.GetString("filename", ""))
	if filename != "" {
		filename = t.outputName(filename, false)
	}

	saved, err := t.app.Close(request.GetBool("save", false), filename)
	switch {
	case errors.Is(err, ErrNotOpen):
		return mcp.NewToolResultText("PowerPoint is not open"), nil
	case errors.Is(err, sandbox.ErrOutsideRoot):
		logger.Error("Failed to close PowerPoint", err)
		return mcp.NewToolResultError(outsideMessage("Error closing PowerPoint", filename)), nil
	case err != nil:
		logger.Error("Failed to close PowerPoint", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error closing PowerPoint: %v", err)), nil
	case saved != "":
		return mcp.NewToolResultText("PowerPoint closed successfully (saved to: " + saved + ")"), nil
	}
	return mcp.NewToolResultText("PowerPoint closed successfully"), nil
}

// outputName forces the .pptx extension and optionally appends a timestamp
// to the base name, keeping any directory part.
func (t *Tools) outputName(filename string, stamp bool) string {
	dir, base := filepath.Split(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if stamp {
		name += "_" + t.now().Format("20060102_150405")
	}
	return filepath.Join(dir, name+".pptx")
}

func outsideMessage(prefix, filename string) string {
	return fmt.Sprintf("%s: %s is outside the output directory; use a relative name or a path inside it", prefix, filename)
}

func rect(request mcp.CallToolRequest) (x, y, w, h int) {
	return request.GetInt("x", 100),
		request.GetInt("y", 100),
		request.GetInt("width", 200),
		request.GetInt("height", 100)
}

func drawError(prefix string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, ErrNotOpen):
		return mcp.NewToolResultError(notOpenMessage)
	case errors.Is(err, ErrNoSlides):
		return mcp.NewToolResultError("Error: No slides available. Please add a slide first.")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// HandleGreeting serves greeting://{name}.
func HandleGreeting(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	name := strings.TrimPrefix(request.Params.URI, "greeting://")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Hello, %s!", name),
		},
	}, nil
}

func HandleReviewCode(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	code := request.Params.Arguments["code"]
	return &mcp.GetPromptResult{
		Description: "Ask for a code review",
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(strings.ReplaceAll(prompts.REVIEW_CODE_TEMPLATE, "{{CODE}}", code))),
		},
	}, nil
}

func HandleDebugError(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Start a debugging conversation about an error",
		Messages: []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(prompts.DEBUG_ERROR_OPENING)),
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(request.Params.Arguments["error"])),
			mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(prompts.DEBUG_ERROR_REPLY)),
		},
	}, nil
}
