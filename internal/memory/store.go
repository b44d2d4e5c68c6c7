package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Config holds memory store configuration.
type Config struct {
	// Path is the absolute location of the database file, supplied by the
	// embedding caller. The parent directory is created if needed.
	Path string

	// SessionID identifies this writer. Empty means a fresh
	// process-lifetime identifier is generated on open.
	SessionID string

	MaxContextMemories int // cap for the classified context list
	MaxImportant       int // cap for the high/critical list
	SnippetLength      int // memory-map snippet truncation
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Path:               filepath.Join(home, ".recall", "memory.db"),
		MaxContextMemories: 100,
		MaxImportant:       50,
		SnippetLength:      80,
	}
}

// Store is the persistent memory engine backed by SQLite + FTS5.
// One handle per process; all operations are synchronous and either
// complete or return a terminal error.
type Store struct {
	db        *sql.DB
	cfg       Config
	path      string
	sessionID string
}

// Open opens or creates the database at cfg.Path, enables WAL mode, and
// runs any pending schema migrations. A migration failure is fatal: the
// store must not be used against a half-migrated file, and Open never
// commits a partial migration.
func Open(cfg Config) (*Store, error) {
	if cfg.MaxContextMemories <= 0 {
		cfg.MaxContextMemories = 100
	}
	if cfg.MaxImportant <= 0 {
		cfg.MaxImportant = 50
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = 80
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}

	s := &Store{cfg: cfg, sessionID: cfg.SessionID}
	if err := s.open(cfg.Path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("memory: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return fmt.Errorf("memory: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	s.db = db
	s.path = path
	if err := s.ensureSchema(); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("memory: migration: %w", err)
	}
	return nil
}

// Reopen closes the current handle and opens the store at a new path,
// used when the working directory changes. Callers must not hold
// references to results across a reopen.
func (s *Store) Reopen(path string) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("memory: close before reopen: %w", err)
		}
		s.db = nil
	}
	return s.open(path)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location of the open handle.
func (s *Store) Path() string { return s.path }

// SessionID returns the writer identifier for this process.
func (s *Store) SessionID() string { return s.sessionID }

// now returns the current time in epoch milliseconds.
var now = func() int64 { return time.Now().UnixMilli() }

// ─── CRUD ────────────────────────────────────────────────────────────────────

// Remember stores a new memory and returns its id. Content must be
// non-empty after trimming; callers are expected to trim user input first.
func (s *Store) Remember(p RememberParams) (int64, error) {
	if strings.TrimSpace(p.Content) == "" {
		return 0, ErrEmptyContent
	}

	importance := p.Importance
	if importance == "" {
		importance = ImportanceNormal
	}
	if !ValidImportances[importance] {
		return 0, fmt.Errorf("memory: invalid importance %q", importance)
	}

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = s.sessionID
	}

	ts := now()
	res, err := s.db.Exec(
		`INSERT INTO memories (content, tags, importance, context, session_id, created_at, updated_at, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Content, tagsJSON(p.Tags), string(importance),
		nullableString(p.Context), sessionID, ts, ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("memory: insert: %w", err)
	}
	return res.LastInsertId()
}

// Update applies the supplied fields to a memory and bumps updated_at.
// Returns false without side effects when the id does not exist or no
// fields were supplied.
func (s *Store) Update(id int64, p UpdateParams) (bool, error) {
	if p.empty() {
		return false, nil
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return false, ErrEmptyContent
	}
	if p.Importance != nil && !ValidImportances[*p.Importance] {
		return false, fmt.Errorf("memory: invalid importance %q", *p.Importance)
	}

	sets := []string{}
	args := []any{}
	if p.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *p.Content)
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, tagsJSON(*p.Tags))
	}
	if p.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, string(*p.Importance))
	}
	if p.Context != nil {
		sets = append(sets, "context = ?")
		args = append(args, nullableString(*p.Context))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	res, err := s.db.Exec(
		`UPDATE memories SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return false, fmt.Errorf("memory: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Forget deletes a memory. The index entry goes with it in the same
// transaction via the sync triggers. Returns false when the id is absent.
func (s *Store) Forget(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("memory: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID retrieves a single memory. Pure read: last_accessed is not
// bumped. Returns nil when the id is absent.
func (s *Store) GetByID(id int64) (*Memory, error) {
	row := s.db.QueryRow(
		`SELECT id, content, tags, importance, context, session_id, created_at, updated_at, last_accessed
		 FROM memories WHERE id = ?`, id,
	)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AllMemories returns every row ordered by updated_at descending. Bulk
// read for maintenance scans; last_accessed is not bumped.
func (s *Store) AllMemories() ([]Memory, error) {
	rows, err := s.db.Query(
		`SELECT id, content, tags, importance, context, session_id, created_at, updated_at, last_accessed
		 FROM memories ORDER BY updated_at DESC`,
	)
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

// BatchDelete removes all matching ids in one transaction and returns
// the number actually deleted.
func (s *Store) BatchDelete(ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := tx.Exec(`DELETE FROM memories WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("memory: batch delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (Memory, error) {
	var m Memory
	var tags, context, sessionID sql.NullString
	var importance string

	err := row.Scan(
		&m.ID, &m.Content, &tags, &importance, &context, &sessionID,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessed,
	)
	if err != nil {
		return m, err
	}

	m.Importance = Importance(importance)
	if context.Valid {
		m.Context = context.String
	}
	if sessionID.Valid {
		m.SessionID = sessionID.String
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &m.Tags); err != nil {
			return m, fmt.Errorf("memory: malformed tags for id %d: %w", m.ID, err)
		}
	}
	return m, nil
}

// tagsJSON serializes tags for storage. Empty lists store as NULL, which
// reads back as no tags.
func tagsJSON(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	s := string(b)
	return &s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
