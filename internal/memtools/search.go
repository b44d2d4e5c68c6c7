package memtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// SearchTool handles the mem_search MCP tool.
type SearchTool struct {
	store *memory.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(store *memory.Store) *SearchTool {
	return &SearchTool{store: store}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription(
			"Search persistent memory across all sessions. Full-text search over content, tags and "+
				"context; omit the query to browse by filters alone. Results are marked as read.",
		),
		mcp.WithString("query",
			mcp.Description("Search terms — natural language or keywords (optional with filters)"),
		),
		mcp.WithArray("tags",
			mcp.Description("Only memories carrying at least one of these tags"),
		),
		mcp.WithString("importance",
			mcp.Description("Only memories at exactly this importance: low, normal, high, critical"),
		),
		mcp.WithNumber("since",
			mcp.Description("Only memories created at or after this epoch-millisecond timestamp"),
		),
		mcp.WithBoolean("session_only",
			mcp.Description("Only memories saved in the current session"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 50)"),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := memory.SearchOptions{
		Query:       req.GetString("query", ""),
		Tags:        tagsArg(req, "tags"),
		Importance:  memory.Importance(req.GetString("importance", "")),
		Since:       int64Arg(req, "since", 0),
		SessionOnly: boolArg(req, "session_only", false),
		Limit:       intArg(req, "limit", 0),
	}
	if opts.Importance != "" && !memory.ValidImportances[opts.Importance] {
		return mcp.NewToolResultError(fmt.Sprintf("invalid importance %q", opts.Importance)), nil
	}

	results, err := t.store.Search(opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n\n", len(results))
	for i, m := range results {
		formatMemory(&b, i+1, m, 300)
	}

	return mcp.NewToolResultText(b.String()), nil
}
