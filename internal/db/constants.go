package db

import "time"

const (
	// schemaVersion is written to PRAGMA user_version after migrations.
	schemaVersion = 1

	// DefaultSessionRetention bounds how long an untouched session scope survives.
	DefaultSessionRetention = 7 * 24 * time.Hour
)
