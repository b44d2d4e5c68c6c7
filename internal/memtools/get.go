package memtools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// ─── GetTool ────────────────────────────────────────────────────────────────

// GetTool handles the mem_get MCP tool.
type GetTool struct {
	store *memory.Store
}

// NewGetTool creates a GetTool with the given memory store.
func NewGetTool(store *memory.Store) *GetTool {
	return &GetTool{store: store}
}

// Definition returns the MCP tool definition for mem_get.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_get",
		mcp.WithDescription(
			"Fetch a single memory by ID with full content and metadata.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Memory ID"),
		),
	)
}

// Handle processes the mem_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	m, err := t.store.GetByID(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch memory: %v", err)), nil
	}
	if m == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Memory %d not found.", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Memory #%d (%s)\n", m.ID, m.Importance)
	if len(m.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(m.Tags, ", "))
	}
	if m.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", m.Context)
	}
	if m.SessionID != "" {
		fmt.Fprintf(&b, "Session: %s\n", m.SessionID)
	}
	fmt.Fprintf(&b, "Created: %s\nUpdated: %s\n\n%s\n",
		formatMillis(m.CreatedAt), formatMillis(m.UpdatedAt), m.Content)

	return mcp.NewToolResultText(b.String()), nil
}

// formatMillis renders an epoch-millisecond timestamp for display.
func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04 UTC")
}

// ─── ListTool ───────────────────────────────────────────────────────────────

// ListTool handles the mem_list MCP tool.
type ListTool struct {
	store *memory.Store
}

// NewListTool creates a ListTool with the given memory store.
func NewListTool(store *memory.Store) *ListTool {
	return &ListTool{store: store}
}

// Definition returns the MCP tool definition for mem_list.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_list",
		mcp.WithDescription(
			"List all memories, most recently updated first. Use mem_search for targeted lookups; "+
				"this is a browse/audit view and does not mark memories as read.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Max memories to return (default: 50)"),
		),
	)
}

// Handle processes the mem_list tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 50)

	memories, err := t.store.AllMemories()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list memories: %v", err)), nil
	}
	if len(memories) == 0 {
		return mcp.NewToolResultText("No memories stored yet."), nil
	}

	total := len(memories)
	if limit > 0 && len(memories) > limit {
		memories = memories[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d memories (showing %d):\n\n", total, len(memories))
	for i, m := range memories {
		formatMemory(&b, i+1, m, 120)
	}

	return mcp.NewToolResultText(b.String()), nil
}
