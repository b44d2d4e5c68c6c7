package memory

import "fmt"

// The full-text index is an FTS5 external-content table shadowing
// memories(content, tags, context), keyed by rowid = memories.id. Sync is
// enforced by triggers so no call site can mutate the table without the
// index: inserts add exactly one entry, updates delete the old entry and
// insert a fresh one (never patch in place), deletes remove the entry in
// the same transaction as the row.

const ddlFTS = `CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
	content,
	tags,
	context,
	content='memories',
	content_rowid='id'
)`

func createIndexTriggers(db dbtx) error {
	triggers := `
		CREATE TRIGGER IF NOT EXISTS memories_fts_insert AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, content, tags, context)
			VALUES (new.id, new.content, new.tags, new.context);
		END;

		CREATE TRIGGER IF NOT EXISTS memories_fts_delete AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, context)
			VALUES ('delete', old.id, old.content, old.tags, old.context);
		END;

		CREATE TRIGGER IF NOT EXISTS memories_fts_update AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, context)
			VALUES ('delete', old.id, old.content, old.tags, old.context);
			INSERT INTO memories_fts(rowid, content, tags, context)
			VALUES (new.id, new.content, new.tags, new.context);
		END;
	`
	if _, err := db.Exec(triggers); err != nil {
		return fmt.Errorf("create fts triggers: %w", err)
	}
	return nil
}

// RebuildIndex clears the full-text index and repopulates it from the
// memories table in one transaction. Safe to call at any time and
// idempotent; it exists as a recovery valve for manual data edits or
// detected drift, not as part of normal operation.
func (s *Store) RebuildIndex() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := rebuildIndexIn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rebuildIndexIn runs the rebuild inside a caller-owned transaction, so
// migrations can rebuild without double-committing. The FTS5 'rebuild'
// command deletes the whole index and reindexes from the content table.
func rebuildIndexIn(db dbtx) error {
	if _, err := db.Exec(`INSERT INTO memories_fts(memories_fts) VALUES ('rebuild')`); err != nil {
		return fmt.Errorf("rebuild fts index: %w", err)
	}
	return nil
}
