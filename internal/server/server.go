// Package server wires the memory store and MCP components together.
//
// This is the composition root: it creates the concrete store and injects
// it into the tool handlers. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/recallhq/recall/internal/memory"
	"github.com/recallhq/recall/internal/memtools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all memory tools
// registered. The store is opened (and migrated if needed) here, so a
// corrupt or unwritable database fails fast at startup.
//
// The returned cleanup function closes the store's database connection
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New() (*server.MCPServer, func(), error) {
	store, err := memory.Open(memory.DefaultConfig())
	if err != nil {
		return nil, noop, fmt.Errorf("opening memory store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("WARNING: memory store close: %v", err)
		}
	}

	s := server.NewMCPServer(
		"recall",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	registerMemoryTools(s, store)

	return s, cleanup, nil
}

// noop is a no-op cleanup function returned when startup fails before
// the store is open.
func noop() {}

// registerMemoryTools registers all memory MCP tools with the server.
func registerMemoryTools(s *server.MCPServer, store *memory.Store) {
	// --- Save & manage ---
	saveTool := memtools.NewSaveTool(store)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	updateTool := memtools.NewUpdateTool(store)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	forgetTool := memtools.NewForgetTool(store)
	s.AddTool(forgetTool.Definition(), forgetTool.Handle)

	pruneTool := memtools.NewPruneTool(store)
	s.AddTool(pruneTool.Definition(), pruneTool.Handle)

	// --- Query & retrieval ---
	searchTool := memtools.NewSearchTool(store)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	getTool := memtools.NewGetTool(store)
	s.AddTool(getTool.Definition(), getTool.Handle)

	listTool := memtools.NewListTool(store)
	s.AddTool(listTool.Definition(), listTool.Handle)

	contextTool := memtools.NewContextTool(store)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	// --- Maintenance ---
	reindexTool := memtools.NewReindexTool(store)
	s.AddTool(reindexTool.Definition(), reindexTool.Handle)

	schemaTool := memtools.NewSchemaTool(store)
	s.AddTool(schemaTool.Definition(), schemaTool.Handle)
}

// serverInstructions returns the system instructions that tell the AI
// how to use recall effectively.
func serverInstructions() string {
	return `You have access to recall, a persistent memory MCP server.

## AT SESSION START

Call mem_context once to load critical knowledge and the memory map from
previous sessions before doing anything else.

## WHEN TO SAVE

Call mem_save PROACTIVELY, without being asked, whenever you learn:
- A decision and its reasoning ("we chose X because Y")
- A user preference ("prefers table-driven tests")
- An environment fact ("staging DB is read-only")
- A convention, workflow, or gotcha worth keeping

Tag memories so they classify well: decision, preference, environment,
workflow, convention, architecture, bug, exploration. Reserve importance
"critical" for things that must never be forgotten.

## WHEN TO SEARCH

Call mem_search before re-deriving anything that may already be known:
past decisions, fixed bugs, project conventions. Searching marks results
as read, which protects them from staleness pruning.

## HYGIENE

Use mem_update when a memory is outdated, mem_forget when it is wrong,
and mem_prune occasionally to clear memories nobody has read in months.`
}
