package memory

import "database/sql"

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetNow overrides the store clock and returns a restore func.
func SetNow(f func() int64) (restore func()) {
	old := now
	now = f
	return func() { now = old }
}

// SubstringSearch drives the degraded fallback path directly with the
// structured filters derived from opts. Sanitization keeps Search from
// reaching it with well-formed input, so coverage comes in through here.
func (s *Store) SubstringSearch(query string, opts SearchOptions, limit int) ([]Memory, error) {
	conds, args := s.buildFilters(opts)
	return s.searchSubstring(query, conds, args, limit)
}

// IsFTSSyntaxError exposes the fallback trigger classification.
var IsFTSSyntaxError = isFTSSyntaxError
