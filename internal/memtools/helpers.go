// Package memtools provides MCP tool handlers for the recall memory store.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies (memory.Store) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Handlers never return protocol errors for bad input or store failures;
// those go back to the model as tool-result errors so it can correct itself.
package memtools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/recallhq/recall/internal/memory"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// int64Arg is intArg for millisecond timestamps and row ids, which can
// exceed what a float64-to-int round trip handles comfortably on 32-bit.
func int64Arg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// tagsArg extracts a tag list. Accepts a JSON array of strings or a
// comma-separated string; both show up in practice depending on the client.
func tagsArg(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []interface{}:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
		return tags
	case string:
		var tags []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}

// formatMemory renders one memory as a result line pair for tool output.
func formatMemory(b *strings.Builder, ordinal int, m memory.Memory, snippetLen int) {
	line := fmt.Sprintf("[%d] #%d (%s)", ordinal, m.ID, m.Importance)
	if len(m.Tags) > 0 {
		line += " [" + strings.Join(m.Tags, ", ") + "]"
	}
	fmt.Fprintf(b, "%s\n    %s\n", line, memory.Truncate(m.Content, snippetLen))
	if m.Context != "" {
		fmt.Fprintf(b, "    context: %s\n", memory.Truncate(m.Context, snippetLen))
	}
	b.WriteString("\n")
}
