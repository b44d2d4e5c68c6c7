// Recall: persistent memory MCP server for AI coding agents.
//
// A universal MCP server that gives any AI coding tool (Claude Code,
// OpenCode, Gemini CLI, Codex, Cursor, VS Code Copilot) a durable,
// searchable memory across sessions.
//
// Usage:
//
//	recall serve    # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	memserver "github.com/recallhq/recall/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("recall v%s\n", memserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := memserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Close the store on interrupt so WAL checkpoints cleanly. The stdio
	// server itself ends when stdin closes.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cleanup()
		os.Exit(0)
	}()

	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Println(`recall - persistent memory for AI coding agents

Usage:
  recall serve      Start the MCP server (stdio transport)
  recall version    Print version
  recall help       Show this help

Setup (Claude Code):
  claude mcp add recall -- recall serve

The memory database lives at ~/.recall/memory.db.`)
}
