package db

import (
	"context"
	"fmt"
)

// migrate stamps a fresh database with schemaVersion and refuses files
// written by a newer build.
func (db *DB) migrate() error {
	version, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to write schema version: %w", err)
	}
	return nil
}

// SchemaVersion returns the PRAGMA user_version of the database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRowContext(context.Background(), "PRAGMA user_version").Scan(&version)
	return version, err
}
