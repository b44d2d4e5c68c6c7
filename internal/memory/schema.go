package memory

import (
	"database/sql"
	"fmt"
	"strings"
)

// currentSchemaVersion is the shipped schema version. History:
//
//	v1: legacy multi-table layout (observations, notes, kv_store, memory_index)
//	v2: unified memories table, legacy rows folded in
//	v3: memories_fts full-text index with sync triggers
//	v4: last_accessed column and secondary indexes
const currentSchemaVersion = 4

// legacyTables are relations from pre-v2 layouts. They are dropped during
// migration and again defensively on every open, in case an earlier bug
// stamped a version while leaving artifacts behind.
var legacyTables = []string{"observations", "notes", "kv_store", "memory_index"}

// ddlMemories is the canonical table. Exact text matters: diagnostic
// tooling asserts on schema dumps.
const ddlMemories = `CREATE TABLE IF NOT EXISTS memories (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	content       TEXT    NOT NULL,
	tags          TEXT,
	importance    TEXT    NOT NULL DEFAULT 'normal',
	context       TEXT,
	session_id    TEXT,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL DEFAULT 0
)`

const ddlSchemaVersion = `CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
)`

const ddlSecondaryIndexes = `
	CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance);
	CREATE INDEX IF NOT EXISTS idx_memories_session    ON memories(session_id);
	CREATE INDEX IF NOT EXISTS idx_memories_created    ON memories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_updated    ON memories(updated_at DESC);
`

// dbtx is satisfied by both *sql.DB and *sql.Tx so schema and index
// helpers can run standalone or inside a caller-owned transaction
// without double-committing.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ensureSchema detects the on-disk schema version and brings it to
// currentSchemaVersion. All migration steps and the version stamp commit
// in one transaction: an interrupted migration leaves nothing applied.
func (s *Store) ensureSchema() error {
	version, err := detectVersion(s.db)
	if err != nil {
		return fmt.Errorf("detect schema version: %w", err)
	}

	switch {
	case version == 0:
		// Brand-new file: current-version tables only, no migration path.
		if err := createCurrentSchema(s.db); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}

	case version < currentSchemaVersion:
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for v := version; v < currentSchemaVersion; v++ {
			if err := runMigration(tx, v+1); err != nil {
				return fmt.Errorf("migrate to v%d: %w", v+1, err)
			}
		}
		if err := stampVersion(tx, currentSchemaVersion); err != nil {
			return fmt.Errorf("stamp version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration: %w", err)
		}
	}

	// Defensive cleanup: legacy relations must not survive any open,
	// even when the stamped version says they are already gone.
	for _, table := range legacyTables {
		if _, err := s.db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return fmt.Errorf("drop legacy table %s: %w", table, err)
		}
	}

	return nil
}

// detectVersion returns the stored schema version, or 0 for a brand-new
// file. A file with legacy tables but no schema_version table is v1.
func detectVersion(db dbtx) (int, error) {
	hasVersion, err := tableExists(db, "schema_version")
	if err != nil {
		return 0, err
	}
	if hasVersion {
		var v int
		if err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v); err != nil {
			if err == sql.ErrNoRows {
				return 0, nil
			}
			return 0, err
		}
		return v, nil
	}

	// Legacy tables win over a coexisting memories table: the v2 fold is
	// idempotent against an existing unified table, while detecting v2
	// here would let the cleanup pass drop the legacy rows unfolded.
	for _, table := range legacyTables {
		exists, err := tableExists(db, table)
		if err != nil {
			return 0, err
		}
		if exists {
			return 1, nil
		}
	}

	exists, err := tableExists(db, "memories")
	if err != nil {
		return 0, err
	}
	if exists {
		// Unified table without a stamp: pre-stamp v2 layout.
		return 2, nil
	}
	return 0, nil
}

// createCurrentSchema stamps a fresh file with the current version and
// creates only current-version relations.
func createCurrentSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{ddlMemories, ddlSchemaVersion, ddlSecondaryIndexes, ddlFTS}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if err := createIndexTriggers(tx); err != nil {
		return err
	}
	if err := stampVersion(tx, currentSchemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func runMigration(tx *sql.Tx, target int) error {
	switch target {
	case 2:
		return migrateToV2(tx)
	case 3:
		return migrateToV3(tx)
	case 4:
		return migrateToV4(tx)
	}
	return fmt.Errorf("no migration step for version %d", target)
}

// migrateToV2 folds the legacy multi-table layout into unified memories
// rows. Each legacy shape maps deterministically:
//
//	observations: content/tags/session carried through, importance normal
//	notes:        "title\n\nbody", category tag, "archived" tag when inactive
//	kv_store:     "key: value" with tags ["kv", key]
//
// The memory_index catalog is dropped without migration; its information
// is redundant with the full-text index.
func migrateToV2(tx *sql.Tx) error {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS memories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	content     TEXT    NOT NULL,
	tags        TEXT,
	importance  TEXT    NOT NULL DEFAULT 'normal',
	context     TEXT,
	session_id  TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
)`); err != nil {
		return err
	}
	if _, err := tx.Exec(ddlSchemaVersion); err != nil {
		return err
	}

	if exists, err := tableExists(tx, "observations"); err != nil {
		return err
	} else if exists {
		if _, err := tx.Exec(`
			INSERT INTO memories (content, tags, importance, session_id, created_at, updated_at)
			SELECT content, tags, 'normal', session_id, created_at, created_at
			FROM observations`); err != nil {
			return fmt.Errorf("fold observations: %w", err)
		}
	}

	if exists, err := tableExists(tx, "notes"); err != nil {
		return err
	} else if exists {
		if _, err := tx.Exec(`
			INSERT INTO memories (content, tags, importance, created_at, updated_at)
			SELECT title || char(10) || char(10) || content,
			       CASE WHEN active = 0
			            THEN json_array(category, 'archived')
			            ELSE json_array(category)
			       END,
			       importance, created_at, created_at
			FROM notes`); err != nil {
			return fmt.Errorf("fold notes: %w", err)
		}
	}

	if exists, err := tableExists(tx, "kv_store"); err != nil {
		return err
	} else if exists {
		if _, err := tx.Exec(`
			INSERT INTO memories (content, tags, importance, created_at, updated_at)
			SELECT key || ': ' || value,
			       json_array('kv', key),
			       'normal', created_at, created_at
			FROM kv_store`); err != nil {
			return fmt.Errorf("fold kv_store: %w", err)
		}
	}

	for _, table := range legacyTables {
		if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
			return err
		}
	}
	return nil
}

// migrateToV3 adds the full-text index and its sync triggers, then
// rebuilds the index from the table so pre-existing rows are covered.
func migrateToV3(tx *sql.Tx) error {
	if _, err := tx.Exec(ddlFTS); err != nil {
		return err
	}
	if err := createIndexTriggers(tx); err != nil {
		return err
	}
	return rebuildIndexIn(tx)
}

// migrateToV4 adds access tracking and the secondary indexes.
func migrateToV4(tx *sql.Tx) error {
	hasCol, err := columnExists(tx, "memories", "last_accessed")
	if err != nil {
		return err
	}
	if !hasCol {
		if _, err := tx.Exec(`ALTER TABLE memories ADD COLUMN last_accessed INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`UPDATE memories SET last_accessed = updated_at WHERE last_accessed = 0`); err != nil {
		return err
	}
	_, err = tx.Exec(ddlSecondaryIndexes)
	return err
}

func stampVersion(db dbtx, version int) error {
	if _, err := db.Exec(ddlSchemaVersion); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version)
	return err
}

func tableExists(db dbtx, name string) (bool, error) {
	var found string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnExists(db dbtx, table, column string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ─── Introspection ───────────────────────────────────────────────────────────

// VersionInfo reports the shipped and on-disk schema versions.
func (s *Store) VersionInfo() (VersionInfo, error) {
	info := VersionInfo{Current: currentSchemaVersion, Path: s.path}
	if err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&info.OnDisk); err != nil {
		return info, fmt.Errorf("read schema version: %w", err)
	}
	return info, nil
}

// DatabaseSchema returns the full DDL text of every relation in the
// store, for diagnostic tooling.
func (s *Store) DatabaseSchema() (string, error) {
	rows, err := s.db.Query(
		`SELECT sql FROM sqlite_master WHERE sql IS NOT NULL ORDER BY name`,
	)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", err
		}
		stmts = append(stmts, stmt+";")
	}
	return strings.Join(stmts, "\n\n"), rows.Err()
}
