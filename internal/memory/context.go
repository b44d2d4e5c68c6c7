package memory

import (
	"fmt"
	"strings"
)

// BuildContext assembles the classified working set for prompt
// injection. Reads here are bulk reads: last_accessed is not bumped.
func (s *Store) BuildContext() (*MemoryContext, error) {
	ctx := &MemoryContext{Memories: []Memory{}, Important: []Memory{}}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&ctx.Total); err != nil {
		return nil, fmt.Errorf("memory: count: %w", err)
	}

	memories, err := s.queryMemories(`
		SELECT `+memoryColumns+`
		FROM memories m
		ORDER BY `+importanceOrder+`, m.updated_at DESC
		LIMIT ?`, s.cfg.MaxContextMemories)
	if err != nil {
		return nil, err
	}
	if memories != nil {
		ctx.Memories = memories
	}

	important, err := s.queryMemories(`
		SELECT `+memoryColumns+`
		FROM memories m
		WHERE m.importance IN ('critical', 'high')
		ORDER BY `+importanceOrder+`, m.updated_at DESC
		LIMIT ?`, s.cfg.MaxImportant)
	if err != nil {
		return nil, err
	}
	if important != nil {
		ctx.Important = important
	}

	return ctx, nil
}

// promptPreamble is the fixed instructional header of every memory prompt.
const promptPreamble = `You have persistent memory across coding sessions. ` +
	`Consult it before re-deriving project knowledge, and save durable ` +
	`decisions, conventions, and gotchas as you discover them.`

// BuildPrompt renders a compact, deterministic summary of the memory
// context for injection into the agent's prompt: a fixed preamble, a
// session-activity line, the full content of every high/critical memory,
// and a per-category memory map with up to three snippets each. The map
// is omitted entirely when the store is empty.
func (s *Store) BuildPrompt(ctx *MemoryContext, sessionWrites, turnsIdle int) string {
	var b strings.Builder

	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Session activity: %d memories saved this session, %d turns since the last save.\n",
		sessionWrites, turnsIdle)

	if len(ctx.Important) > 0 {
		b.WriteString("\n## Critical knowledge\n\n")
		for _, m := range ctx.Important {
			fmt.Fprintf(&b, "- [%s] %s", m.Importance, m.Content)
			if len(m.Tags) > 0 {
				fmt.Fprintf(&b, " (tags: %s)", strings.Join(m.Tags, ", "))
			}
			b.WriteString("\n")
		}
	}

	if ctx.Total > 0 {
		byCategory := map[string][]Memory{}
		for _, m := range ctx.Memories {
			cat := Classify(m)
			byCategory[cat] = append(byCategory[cat], m)
		}

		b.WriteString("\n## Memory map\n\n")
		for _, cat := range DisplayCategories() {
			members := byCategory[cat]
			if len(members) == 0 {
				continue
			}
			fmt.Fprintf(&b, "- %s (%d)\n", cat, len(members))
			for i, m := range members {
				if i == 3 {
					break
				}
				fmt.Fprintf(&b, "    - %s\n", snippet(m.Content, s.cfg.SnippetLength))
			}
		}
	}

	return b.String()
}

// snippet returns the first line of content, truncated.
func snippet(content string, max int) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return Truncate(strings.TrimSpace(line), max)
}
