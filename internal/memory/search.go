package memory

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

const defaultSearchLimit = 50

// importanceOrder is the SQL rendering of the importance total order,
// used wherever results sort by importance first.
const importanceOrder = `CASE m.importance
		WHEN 'critical' THEN 3
		WHEN 'high' THEN 2
		WHEN 'normal' THEN 1
		ELSE 0
	END DESC`

const memoryColumns = `m.id, m.content, m.tags, m.importance, m.context, m.session_id, m.created_at, m.updated_at, m.last_accessed`

// Search resolves a retrieval request into an indexed full-text query, a
// substring fallback, or a pure structured filter, and bumps
// last_accessed on every returned memory. Plan:
//
//  1. non-empty query → sanitized FTS match ordered by relevance rank
//  2. FTS syntax error → substring match ordered by updated_at desc
//  3. no usable query → structured filter ordered by importance then
//     updated_at desc
//
// Structured filters AND-combine with each other and the query clause.
func (s *Store) Search(opts SearchOptions) ([]Memory, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	conds, args := s.buildFilters(opts)

	var memories []Memory
	var err error

	query := strings.TrimSpace(opts.Query)
	ftsQuery := sanitizeFTS(query)

	switch {
	case ftsQuery != "":
		memories, err = s.searchFTS(ftsQuery, conds, args, limit)
		if err != nil && isFTSSyntaxError(err) {
			memories, err = s.searchSubstring(query, conds, args, limit)
		}
	default:
		// Empty query, or one reduced to nothing by sanitization.
		memories, err = s.searchStructured(conds, args, limit)
	}
	if err != nil {
		return nil, err
	}

	if err := s.touch(memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (s *Store) searchFTS(ftsQuery string, conds []string, args []any, limit int) ([]Memory, error) {
	sqlStr := `
		SELECT ` + memoryColumns + `
		FROM memories_fts fts
		JOIN memories m ON m.id = fts.rowid
		WHERE memories_fts MATCH ?`
	queryArgs := append([]any{ftsQuery}, args...)

	for _, c := range conds {
		sqlStr += " AND " + c
	}
	sqlStr += " ORDER BY fts.rank LIMIT ?"
	queryArgs = append(queryArgs, limit)

	return s.queryMemories(sqlStr, queryArgs...)
}

func (s *Store) searchSubstring(query string, conds []string, args []any, limit int) ([]Memory, error) {
	sqlStr := `
		SELECT ` + memoryColumns + `
		FROM memories m
		WHERE m.content LIKE ? ESCAPE '\'`
	queryArgs := append([]any{"%" + escapeLike(query) + "%"}, args...)

	for _, c := range conds {
		sqlStr += " AND " + c
	}
	sqlStr += " ORDER BY m.updated_at DESC LIMIT ?"
	queryArgs = append(queryArgs, limit)

	return s.queryMemories(sqlStr, queryArgs...)
}

func (s *Store) searchStructured(conds []string, args []any, limit int) ([]Memory, error) {
	sqlStr := `
		SELECT ` + memoryColumns + `
		FROM memories m
		WHERE 1=1`
	for _, c := range conds {
		sqlStr += " AND " + c
	}
	sqlStr += " ORDER BY " + importanceOrder + ", m.updated_at DESC LIMIT ?"
	args = append(args, limit)

	return s.queryMemories(sqlStr, args...)
}

// buildFilters renders the structured filters. Tag matching is any-of:
// a memory matches when its serialized tag list contains at least one of
// the requested tags as an exact JSON string element.
func (s *Store) buildFilters(opts SearchOptions) ([]string, []any) {
	var conds []string
	var args []any

	if len(opts.Tags) > 0 {
		likes := make([]string, len(opts.Tags))
		for i, tag := range opts.Tags {
			likes[i] = `m.tags LIKE ? ESCAPE '\'`
			// Tags are stored JSON-serialized, so the needle is the tag's
			// JSON rendering (quotes included): a tag containing a double
			// quote is on disk as \" and would never match raw.
			element, _ := json.Marshal(tag)
			args = append(args, `%`+escapeLike(string(element))+`%`)
		}
		conds = append(conds, "("+strings.Join(likes, " OR ")+")")
	}
	if opts.Importance != "" {
		conds = append(conds, "m.importance = ?")
		args = append(args, string(opts.Importance))
	}
	if opts.Since > 0 {
		conds = append(conds, "m.created_at >= ?")
		args = append(args, opts.Since)
	}
	if opts.SessionOnly {
		conds = append(conds, "m.session_id = ?")
		args = append(args, s.sessionID)
	}
	return conds, args
}

func (s *Store) queryMemories(query string, args ...any) ([]Memory, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// touch bumps last_accessed for every returned memory in one statement.
// Bulk reads (AllMemories, GetByID) never do this.
func (s *Store) touch(memories []Memory) error {
	if len(memories) == 0 {
		return nil
	}
	ts := now()
	placeholders := make([]string, len(memories))
	args := make([]any, 0, len(memories)+1)
	args = append(args, ts)
	for i, m := range memories {
		placeholders[i] = "?"
		args = append(args, m.ID)
	}
	_, err := s.db.Exec(
		`UPDATE memories SET last_accessed = ? WHERE id IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("memory: touch: %w", err)
	}
	for i := range memories {
		memories[i].LastAccessed = ts
	}
	return nil
}

// ─── Query sanitization ──────────────────────────────────────────────────────

// sanitizeFTS turns free text into a safe FTS5 query: operator and
// control characters are stripped, remaining tokens are quoted literals.
// "fix auth-bug (urgent)" → `"fix" "auth" "bug" "urgent"`. Returns ""
// when nothing usable survives, which callers treat as no query at all.
func sanitizeFTS(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, query)

	words := strings.Fields(cleaned)
	for i, w := range words {
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

// escapeLike escapes LIKE pattern metacharacters so user input matches
// literally. Pairs with ESCAPE '\' in the query text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isFTSSyntaxError reports whether an error came from FTS5 query
// parsing, as opposed to a storage failure that must propagate.
func isFTSSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "unknown special query") ||
		strings.Contains(msg, "malformed MATCH")
}
