package memory_test

import (
	"database/sql"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/recallhq/recall/internal/memory"
)

// seedLegacyStore writes a v1 multi-table database at path, bypassing
// the store so migration starts from a realistic old file.
func seedLegacyStore(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer db.Close()

	ddl := `
		CREATE TABLE observations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			content    TEXT NOT NULL,
			tags       TEXT,
			session_id TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			category   TEXT NOT NULL,
			importance TEXT NOT NULL DEFAULT 'normal',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE kv_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE memory_index (
			term      TEXT NOT NULL,
			memory_id INTEGER NOT NULL
		);
	`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
}

func legacyTableNames(t *testing.T, s *memory.Store) []string {
	t.Helper()
	rows, err := s.DB().Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name IN ('observations', 'notes', 'kv_store', 'memory_index')`,
	)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatal(err)
		}
		names = append(names, n)
	}
	return names
}

// ─── Fresh store ────────────────────────────────────────────────────────────

func TestFreshStore_StampedAtCurrentVersion(t *testing.T) {
	s := newTestStore(t)

	info, err := s.VersionInfo()
	if err != nil {
		t.Fatalf("VersionInfo: %v", err)
	}
	if info.OnDisk != info.Current {
		t.Errorf("on-disk version %d != current %d", info.OnDisk, info.Current)
	}
	if info.Path == "" {
		t.Error("VersionInfo.Path is empty")
	}
}

func TestFreshStore_SchemaSurface(t *testing.T) {
	s := newTestStore(t)

	schema, err := s.DatabaseSchema()
	if err != nil {
		t.Fatalf("DatabaseSchema: %v", err)
	}

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS memories",
		"memories_fts",
		"schema_version",
		"idx_memories_importance",
		"idx_memories_session",
		"idx_memories_created",
		"idx_memories_updated",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema dump missing %q", want)
		}
	}
}

// ─── Legacy migration ───────────────────────────────────────────────────────

func TestMigration_FoldsLegacyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	seedLegacyStore(t, path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO observations (content, tags, session_id, created_at)
		 VALUES ('Found race condition', '["bug","concurrency"]', 'old-session', 1700000000000)`,
	); err != nil {
		t.Fatalf("seed observation: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO notes (title, content, category, importance, active, created_at)
		 VALUES ('Archived Note', 'Old convention', 'convention', 'high', 0, 1700000001000)`,
	); err != nil {
		t.Fatalf("seed note: %v", err)
	}
	db.Close()

	s, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("Open on legacy store: %v", err)
	}
	defer s.Close()

	all, err := s.AllMemories()
	if err != nil {
		t.Fatalf("AllMemories: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("migrated row count = %d, want 2", len(all))
	}

	var event, note *memory.Memory
	for i := range all {
		if strings.HasPrefix(all[i].Content, "Found race condition") {
			event = &all[i]
		} else {
			note = &all[i]
		}
	}
	if event == nil || note == nil {
		t.Fatalf("could not identify migrated rows: %+v", all)
	}

	if !reflect.DeepEqual(event.Tags, []string{"bug", "concurrency"}) {
		t.Errorf("event tags = %v, want carried through unchanged", event.Tags)
	}
	if event.Importance != memory.ImportanceNormal {
		t.Errorf("event importance = %q, want normal default", event.Importance)
	}
	if event.SessionID != "old-session" {
		t.Errorf("event session = %q", event.SessionID)
	}
	if event.CreatedAt != 1700000000000 {
		t.Errorf("event created_at = %d", event.CreatedAt)
	}
	if event.LastAccessed != event.UpdatedAt {
		t.Errorf("event last_accessed = %d, want initialized to updated_at", event.LastAccessed)
	}

	if note.Content != "Archived Note\n\nOld convention" {
		t.Errorf("note content = %q", note.Content)
	}
	if !reflect.DeepEqual(note.Tags, []string{"convention", "archived"}) {
		t.Errorf("note tags = %v, want category plus archived", note.Tags)
	}
	if note.Importance != memory.ImportanceHigh {
		t.Errorf("note importance = %q, want preserved", note.Importance)
	}

	if names := legacyTableNames(t, s); len(names) != 0 {
		t.Errorf("legacy tables still present: %v", names)
	}

	info, err := s.VersionInfo()
	if err != nil {
		t.Fatalf("VersionInfo: %v", err)
	}
	if info.OnDisk != info.Current {
		t.Errorf("on-disk version %d after migration, want %d", info.OnDisk, info.Current)
	}

	// Migrated rows are reachable through the full-text index.
	results, err := s.Search(memory.SearchOptions{Query: "race condition"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != event.ID {
		t.Errorf("migrated event not found via FTS: %+v", results)
	}
}

func TestMigration_KeyValuePairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	seedLegacyStore(t, path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO kv_store (key, value, created_at) VALUES ('editor', 'vim', 1700000000000)`,
	); err != nil {
		t.Fatalf("seed kv: %v", err)
	}
	db.Close()

	s, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	all, err := s.AllMemories()
	if err != nil {
		t.Fatalf("AllMemories: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("row count = %d", len(all))
	}
	if all[0].Content != "editor: vim" {
		t.Errorf("content = %q", all[0].Content)
	}
	if !reflect.DeepEqual(all[0].Tags, []string{"kv", "editor"}) {
		t.Errorf("tags = %v", all[0].Tags)
	}
	if all[0].Importance != memory.ImportanceNormal {
		t.Errorf("importance = %q", all[0].Importance)
	}
}

func TestMigration_EmptyLegacyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	seedLegacyStore(t, path)

	s, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	all, err := s.AllMemories()
	if err != nil {
		t.Fatalf("AllMemories: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty store, got %d rows", len(all))
	}
}

func TestMigration_LegacyTablesWinOverCoexistingMemories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")
	seedLegacyStore(t, path)

	// A hybrid file: an unstamped unified table alongside populated
	// legacy tables. Must be treated as v1 so the legacy rows fold in
	// instead of being dropped by the cleanup pass.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE memories (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		content     TEXT    NOT NULL,
		tags        TEXT,
		importance  TEXT    NOT NULL DEFAULT 'normal',
		context     TEXT,
		session_id  TEXT,
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`); err != nil {
		t.Fatalf("seed memories table: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO memories (content, created_at, updated_at) VALUES ('already unified', 1700000000000, 1700000000000)`,
	); err != nil {
		t.Fatalf("seed unified row: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO observations (content, created_at) VALUES ('still legacy', 1700000001000)`,
	); err != nil {
		t.Fatalf("seed legacy row: %v", err)
	}
	db.Close()

	s, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("Open on hybrid store: %v", err)
	}
	defer s.Close()

	all, err := s.AllMemories()
	if err != nil {
		t.Fatalf("AllMemories: %v", err)
	}
	contents := make([]string, len(all))
	for i, m := range all {
		contents[i] = m.Content
	}
	sort.Strings(contents)
	if !reflect.DeepEqual(contents, []string{"already unified", "still legacy"}) {
		t.Fatalf("contents = %v, want both the unified and the folded row", contents)
	}

	if names := legacyTableNames(t, s); len(names) != 0 {
		t.Errorf("legacy tables still present: %v", names)
	}
	info, err := s.VersionInfo()
	if err != nil {
		t.Fatalf("VersionInfo: %v", err)
	}
	if info.OnDisk != info.Current {
		t.Errorf("on-disk version %d, want %d", info.OnDisk, info.Current)
	}
}

// ─── Defensive cleanup ──────────────────────────────────────────────────────

func TestOpen_DropsStrayLegacyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")

	s1, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := s1.Remember(memory.RememberParams{Content: "keep me"})
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	// Simulate an earlier bug that stamped the version but left a
	// legacy artifact behind.
	if _, err := s1.DB().Exec(`CREATE TABLE memory_index (term TEXT, memory_id INTEGER)`); err != nil {
		t.Fatalf("plant stray table: %v", err)
	}
	s1.Close()

	s2, err := memory.Open(memory.Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if names := legacyTableNames(t, s2); len(names) != 0 {
		t.Errorf("stray legacy tables survived reopen: %v", names)
	}
	if m, _ := s2.GetByID(id); m == nil {
		t.Error("real data lost during cleanup")
	}
}
