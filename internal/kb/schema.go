package kb

import (
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

const currentSchemaVersion = 2

// Schema definitions
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

const metaTable = `
CREATE TABLE IF NOT EXISTS meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	embedding_provider TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	embedding_dimensions INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	document_count INTEGER NOT NULL,
	built_at TEXT DEFAULT (datetime('now'))
);
`

const chunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	seq INTEGER NOT NULL,
	source TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	UNIQUE(seq)
);

CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// createVectorTable creates the sqlite-vec virtual table for the given dimensions.
func createVectorTable(db *sql.DB, dimensions int) error {
	query := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(
			chunk_id INTEGER PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimensions)

	_, err := db.Exec(query)
	return err
}

// dropVectorTable removes the vector table so it can be recreated with new
// dimensions.
func dropVectorTable(db *sql.DB) error {
	_, err := db.Exec("DROP TABLE IF EXISTS chunk_vectors")
	return err
}

// initSchema initializes the database schema.
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		version = 0
	} else if err != nil {
		return fmt.Errorf("failed to check schema version: %w", err)
	}

	if version >= currentSchemaVersion {
		log.Debug("Schema is up to date", "version", version)
		return nil
	}

	log.Debug("Migrating schema", "from", version, "to", currentSchemaVersion)

	if version < 1 {
		if err := migrateV1(db); err != nil {
			return fmt.Errorf("failed to migrate to v1: %w", err)
		}
	}
	if version < 2 {
		if err := migrateV2(db); err != nil {
			return fmt.Errorf("failed to migrate to v2: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the initial schema. The vector table is created at build
// time once the embedding dimensions are known.
func migrateV1(db *sql.DB) error {
	log.Debug("Applying migration v1")

	tables := []string{metaTable, chunksTable}
	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}

// migrateV2 records the fingerprint of the document set a build covers, so
// staleness can be detected across process restarts.
func migrateV2(db *sql.DB) error {
	log.Debug("Applying migration v2")

	if _, err := db.Exec("ALTER TABLE meta ADD COLUMN doc_fingerprint TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("failed to add doc_fingerprint column: %w", err)
	}

	if _, err := db.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (?)", 2); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
