package memtools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// ─── ReindexTool ────────────────────────────────────────────────────────────

// ReindexTool handles the mem_reindex MCP tool.
type ReindexTool struct {
	store *memory.Store
}

// NewReindexTool creates a ReindexTool.
func NewReindexTool(store *memory.Store) *ReindexTool {
	return &ReindexTool{store: store}
}

// Definition returns the MCP tool definition for mem_reindex.
func (t *ReindexTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_reindex",
		mcp.WithDescription(
			"Rebuild the full-text search index from stored memories. Use if search results "+
				"look incomplete or stale; safe to run at any time.",
		),
	)
}

// Handle processes the mem_reindex tool call.
func (t *ReindexTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := t.store.RebuildIndex(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to rebuild index: %v", err)), nil
	}
	return mcp.NewToolResultText("Search index rebuilt."), nil
}

// ─── SchemaTool ─────────────────────────────────────────────────────────────

// SchemaTool handles the mem_schema MCP tool.
type SchemaTool struct {
	store *memory.Store
}

// NewSchemaTool creates a SchemaTool.
func NewSchemaTool(store *memory.Store) *SchemaTool {
	return &SchemaTool{store: store}
}

// Definition returns the MCP tool definition for mem_schema.
func (t *SchemaTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_schema",
		mcp.WithDescription(
			"Inspect the memory database: schema version, storage path, aggregate statistics, "+
				"and optionally the full DDL.",
		),
		mcp.WithBoolean("include_ddl",
			mcp.Description("Include the CREATE statements of all tables, indexes and triggers"),
		),
	)
}

// Handle processes the mem_schema tool call.
func (t *SchemaTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := t.store.VersionInfo()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read schema version: %v", err)), nil
	}
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read statistics: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s\n", info.Path)
	fmt.Fprintf(&b, "Schema version: %d (engine supports %d)\n", info.OnDisk, info.Current)
	fmt.Fprintf(&b, "Session: %s\n\n", t.store.SessionID())

	fmt.Fprintf(&b, "Memories: %d\n", stats.Total)
	writeCounts(&b, "By importance", stats.ByImportance)
	writeCounts(&b, "By category", stats.ByCategory)

	if boolArg(req, "include_ddl", false) {
		ddl, err := t.store.DatabaseSchema()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read schema: %v", err)), nil
		}
		fmt.Fprintf(&b, "\nSchema:\n\n%s\n", ddl)
	}

	return mcp.NewToolResultText(b.String()), nil
}

// writeCounts renders a count map as an indented block, keys sorted for
// stable output.
func writeCounts(b *strings.Builder, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "  %-12s %d\n", k, counts[k])
	}
}
