package memtools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// ContextTool handles the mem_context MCP tool.
type ContextTool struct {
	store *memory.Store
}

// NewContextTool creates a ContextTool.
func NewContextTool(store *memory.Store) *ContextTool {
	return &ContextTool{store: store}
}

// Definition returns the MCP tool definition for mem_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_context",
		mcp.WithDescription(
			"Get the memory awareness block for the current session: critical knowledge plus a "+
				"category map of everything stored. Call this at session start.",
		),
		mcp.WithNumber("session_writes",
			mcp.Description("Memories saved so far this session (default: 0)"),
		),
		mcp.WithNumber("turns_idle",
			mcp.Description("Turns since the last save (default: 0)"),
		),
	)
}

// Handle processes the mem_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mc, err := t.store.BuildContext()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build memory context: %v", err)), nil
	}

	prompt := t.store.BuildPrompt(mc,
		intArg(req, "session_writes", 0),
		intArg(req, "turns_idle", 0),
	)
	return mcp.NewToolResultText(prompt), nil
}
