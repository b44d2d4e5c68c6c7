// Package memory implements the persistent memory engine for recall.
//
// It stores free-text memories with tags and importance in SQLite, keeps
// an FTS5 full-text index in lockstep with the source table, and serves
// filtered, ranked retrieval back into the agent's prompt. The on-disk
// schema is versioned; older layouts are migrated in a single transaction
// on open.
package memory

import (
	"errors"
	"strings"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Importance is the total-ordered priority of a memory:
// critical > high > normal > low.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceNormal   Importance = "normal"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// ValidImportances are the allowed importance levels.
var ValidImportances = map[Importance]bool{
	ImportanceLow:      true,
	ImportanceNormal:   true,
	ImportanceHigh:     true,
	ImportanceCritical: true,
}

// Rank returns the sort weight of an importance level (higher sorts first).
// Unknown values rank with normal.
func (i Importance) Rank() int {
	switch i {
	case ImportanceCritical:
		return 3
	case ImportanceHigh:
		return 2
	case ImportanceLow:
		return 0
	default:
		return 1
	}
}

// Memory is a single stored memory entry. Timestamps are epoch milliseconds.
type Memory struct {
	ID           int64      `json:"id"`
	Content      string     `json:"content"`
	Tags         []string   `json:"tags,omitempty"`
	Importance   Importance `json:"importance"`
	Context      string     `json:"context,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	CreatedAt    int64      `json:"created_at"`
	UpdatedAt    int64      `json:"updated_at"`
	LastAccessed int64      `json:"last_accessed"`
}

// RememberParams holds the input for creating a new memory.
// Content is required; everything else has documented defaults.
type RememberParams struct {
	Content    string     `json:"content"`
	Tags       []string   `json:"tags,omitempty"`
	Importance Importance `json:"importance,omitempty"`
	Context    string     `json:"context,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
}

// UpdateParams holds partial update fields for a memory.
// Nil fields are left untouched.
type UpdateParams struct {
	Content    *string     `json:"content,omitempty"`
	Tags       *[]string   `json:"tags,omitempty"`
	Importance *Importance `json:"importance,omitempty"`
	Context    *string     `json:"context,omitempty"`
}

func (p UpdateParams) empty() bool {
	return p.Content == nil && p.Tags == nil && p.Importance == nil && p.Context == nil
}

// SearchOptions holds the retrieval request for Search.
type SearchOptions struct {
	Query       string     `json:"query,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Importance  Importance `json:"importance,omitempty"`
	Since       int64      `json:"since,omitempty"`
	SessionOnly bool       `json:"session_only,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

// MemoryContext is the classified working set handed to prompt assembly.
type MemoryContext struct {
	Memories  []Memory `json:"memories"`
	Important []Memory `json:"important"`
	Total     int      `json:"total"`
}

// VersionInfo describes the schema version of an open store.
type VersionInfo struct {
	Current int    `json:"current"`
	OnDisk  int    `json:"on_disk"`
	Path    string `json:"path"`
}

// Stats holds aggregate memory statistics.
type Stats struct {
	Total        int            `json:"total"`
	ByImportance map[string]int `json:"by_importance"`
	ByCategory   map[string]int `json:"by_category"`
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrEmptyContent is returned by Remember when content is empty after
// trimming. Missing ids are not errors: Update/Forget report them as false.
var ErrEmptyContent = errors.New("memory: content must not be empty")

// ─── Awareness classification ────────────────────────────────────────────────

// ClassifyRule maps a set of trigger tags to an awareness category.
type ClassifyRule struct {
	Tags     []string
	Category string
}

// ClassifyRules is the ordered rule list for Classify. First match wins;
// the order doubles as the display order of the memory map, so it is part
// of the contract rather than an implementation detail.
var ClassifyRules = []ClassifyRule{
	{Tags: []string{"commit", "auto-captured"}, Category: "commits"},
	{Tags: []string{"decision"}, Category: "decisions"},
	{Tags: []string{"preference", "pref"}, Category: "preferences"},
	{Tags: []string{"environment", "env"}, Category: "environment"},
	{Tags: []string{"workflow"}, Category: "workflows"},
	{Tags: []string{"convention", "approach"}, Category: "conventions"},
	{Tags: []string{"architecture"}, Category: "architecture"},
	{Tags: []string{"issue", "bug", "gotcha", "reminder"}, Category: "issues"},
	{Tags: []string{"exploration"}, Category: "explorations"},
}

// CategoryOther collects memories no rule matches.
const CategoryOther = "other"

// Classify returns the awareness category for a memory based on its tags.
func Classify(m Memory) string {
	for _, rule := range ClassifyRules {
		for _, trigger := range rule.Tags {
			for _, tag := range m.Tags {
				if strings.EqualFold(tag, trigger) {
					return rule.Category
				}
			}
		}
	}
	return CategoryOther
}

// DisplayCategories returns all categories in memory-map display order.
func DisplayCategories() []string {
	out := make([]string, 0, len(ClassifyRules)+1)
	for _, rule := range ClassifyRules {
		out = append(out, rule.Category)
	}
	return append(out, CategoryOther)
}
