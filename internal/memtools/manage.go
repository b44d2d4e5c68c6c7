package memtools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// ─── UpdateTool ─────────────────────────────────────────────────────────────

// UpdateTool handles the mem_update MCP tool.
type UpdateTool struct {
	store *memory.Store
}

// NewUpdateTool creates an UpdateTool with the given memory store.
func NewUpdateTool(store *memory.Store) *UpdateTool {
	return &UpdateTool{store: store}
}

// Definition returns the MCP tool definition for mem_update.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_update",
		mcp.WithDescription(
			"Update an existing memory by ID. Only provided fields are changed; "+
				"pass an empty tags array to clear tags.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Memory ID to update"),
		),
		mcp.WithString("content",
			mcp.Description("New content"),
		),
		mcp.WithArray("tags",
			mcp.Description("Replacement tag list (empty array clears tags)"),
		),
		mcp.WithString("importance",
			mcp.Description("New importance: low, normal, high, critical"),
		),
		mcp.WithString("context",
			mcp.Description("New context"),
		),
	)
}

// Handle processes the mem_update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	params := memory.UpdateParams{}
	if v := req.GetString("content", ""); v != "" {
		params.Content = &v
	}
	if _, present := req.GetArguments()["tags"]; present {
		tags := tagsArg(req, "tags")
		params.Tags = &tags
	}
	if v := req.GetString("importance", ""); v != "" {
		imp := memory.Importance(v)
		if !memory.ValidImportances[imp] {
			return mcp.NewToolResultError(fmt.Sprintf("invalid importance %q", v)), nil
		}
		params.Importance = &imp
	}
	if v := req.GetString("context", ""); v != "" {
		params.Context = &v
	}

	updated, err := t.store.Update(id, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update memory: %v", err)), nil
	}
	if !updated {
		return mcp.NewToolResultText(fmt.Sprintf("Memory %d not found (or no fields to update).", id)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory %d updated.", id)), nil
}

// ─── ForgetTool ─────────────────────────────────────────────────────────────

// ForgetTool handles the mem_forget MCP tool.
type ForgetTool struct {
	store *memory.Store
}

// NewForgetTool creates a ForgetTool with the given memory store.
func NewForgetTool(store *memory.Store) *ForgetTool {
	return &ForgetTool{store: store}
}

// Definition returns the MCP tool definition for mem_forget.
func (t *ForgetTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_forget",
		mcp.WithDescription(
			"Permanently delete a memory by ID. Use when information is wrong or obsolete.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Memory ID to delete"),
		),
	)
}

// Handle processes the mem_forget tool call.
func (t *ForgetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if id == 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	deleted, err := t.store.Forget(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete memory: %v", err)), nil
	}
	if !deleted {
		return mcp.NewToolResultText(fmt.Sprintf("Memory %d not found.", id)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Memory %d deleted.", id)), nil
}

// ─── PruneTool ──────────────────────────────────────────────────────────────

// PruneTool handles the mem_prune MCP tool.
type PruneTool struct {
	store *memory.Store
}

// NewPruneTool creates a PruneTool with the given memory store.
func NewPruneTool(store *memory.Store) *PruneTool {
	return &PruneTool{store: store}
}

// Definition returns the MCP tool definition for mem_prune.
func (t *PruneTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_prune",
		mcp.WithDescription(
			"Delete memories in bulk: either an explicit list of IDs, or stale memories "+
				"not read for a number of days. Critical memories are never pruned by staleness.",
		),
		mcp.WithArray("ids",
			mcp.Description("Explicit memory IDs to delete"),
		),
		mcp.WithNumber("stale_days",
			mcp.Description("Prune memories not accessed in this many days (default: 90 when no ids given)"),
		),
		mcp.WithString("max_importance",
			mcp.Description("Staleness ceiling: only prune memories at or below this importance (default: normal)"),
		),
	)
}

// Handle processes the mem_prune tool call.
func (t *PruneTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if raw, ok := req.GetArguments()["ids"].([]interface{}); ok && len(raw) > 0 {
		ids := make([]int64, 0, len(raw))
		for _, item := range raw {
			if f, ok := item.(float64); ok {
				ids = append(ids, int64(f))
			}
		}
		n, err := t.store.BatchDelete(ids)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to prune memories: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Deleted %d of %d memories.", n, len(ids))), nil
	}

	days := intArg(req, "stale_days", 90)
	if days <= 0 {
		return mcp.NewToolResultError("'stale_days' must be positive"), nil
	}
	ceiling := memory.Importance(req.GetString("max_importance", string(memory.ImportanceNormal)))
	if !memory.ValidImportances[ceiling] {
		return mcp.NewToolResultError(fmt.Sprintf("invalid max_importance %q", ceiling)), nil
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	n, err := t.store.PruneStale(cutoff, ceiling)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to prune memories: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Pruned %d stale memories (not accessed in %d days).", n, days)), nil
}
