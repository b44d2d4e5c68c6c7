package memtools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// SaveTool handles the mem_save MCP tool.
type SaveTool struct {
	store *memory.Store
}

// NewSaveTool creates a SaveTool with the given memory store.
func NewSaveTool(store *memory.Store) *SaveTool {
	return &SaveTool{store: store}
}

// Definition returns the MCP tool definition for mem_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_save",
		mcp.WithDescription(
			"Save a memory to persistent storage. Call this PROACTIVELY when you learn something "+
				"worth keeping across sessions: decisions, user preferences, environment quirks, "+
				"conventions, gotchas. Don't wait to be asked.",
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The memory text. Keep the first line short and searchable."),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags for filtering and classification, e.g. [\"decision\", \"auth\"]"),
		),
		mcp.WithString("importance",
			mcp.Description("Importance level: low, normal, high, critical (default: normal)"),
		),
		mcp.WithString("context",
			mcp.Description("Where this came from, e.g. a file path or topic"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to attribute this memory to (default: current session)"),
		),
	)
}

// Handle processes the mem_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")

	id, err := t.store.Remember(memory.RememberParams{
		Content:    content,
		Tags:       tagsArg(req, "tags"),
		Importance: memory.Importance(req.GetString("importance", "")),
		Context:    req.GetString("context", ""),
		SessionID:  req.GetString("session_id", ""),
	})
	if err != nil {
		if errors.Is(err, memory.ErrEmptyContent) {
			return mcp.NewToolResultError("'content' is required"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to save memory: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory saved.\nID: %d", id)), nil
}
