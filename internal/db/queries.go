package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/audit-dashboard-tui/internal/models"
)

// GetLocal returns a durable storage value.
func (db *DB) GetLocal(key string) (string, error) {
	var value string
	err := db.QueryRowContext(context.Background(),
		"SELECT value FROM local_storage WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get local value: %w", err)
	}
	return value, nil
}

// SetLocal writes a durable storage value.
func (db *DB) SetLocal(key, value string) error {
	query := `
		INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(context.Background(), query, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to set local value: %w", err)
	}
	return nil
}

// RemoveLocal deletes a durable storage value. Missing keys are not an error.
func (db *DB) RemoveLocal(key string) error {
	if _, err := db.ExecContext(context.Background(), "DELETE FROM local_storage WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove local value: %w", err)
	}
	return nil
}

// GetSession returns a value from the storage scope of one session.
func (db *DB) GetSession(sessionID, key string) (string, error) {
	var value string
	err := db.QueryRowContext(context.Background(),
		"SELECT value FROM session_storage WHERE session_id = ? AND key = ?", sessionID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session value: %w", err)
	}
	return value, nil
}

// SetSession writes a value to the storage scope of one session.
func (db *DB) SetSession(sessionID, key, value string) error {
	query := `
		INSERT INTO session_storage (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(context.Background(), query, sessionID, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to set session value: %w", err)
	}
	return nil
}

// RemoveSession deletes a value from the storage scope of one session.
func (db *DB) RemoveSession(sessionID, key string) error {
	_, err := db.ExecContext(context.Background(),
		"DELETE FROM session_storage WHERE session_id = ? AND key = ?", sessionID, key)
	if err != nil {
		return fmt.Errorf("failed to remove session value: %w", err)
	}
	return nil
}

// ClearSession deletes the whole storage scope of one session.
func (db *DB) ClearSession(sessionID string) error {
	if _, err := db.ExecContext(context.Background(),
		"DELETE FROM session_storage WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// PruneSessions deletes session values not written for maxAge and returns the
// number of rows removed.
func (db *DB) PruneSessions(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := db.ExecContext(context.Background(),
		"DELETE FROM session_storage WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// UpsertToken stores the token set of an account.
func (db *DB) UpsertToken(entry *models.TokenEntry) error {
	if entry.Account.HomeAccountID == "" {
		return errors.New("token entry has no account id")
	}

	account, err := json.Marshal(entry.Account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}

	lastUsed := entry.LastUsed
	if lastUsed.IsZero() {
		lastUsed = time.Now()
	}

	query := `
		INSERT INTO token_cache (
			home_account_id, username, account, refresh_token, access_token,
			scopes, expires_at, last_used, signed_in
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(home_account_id) DO UPDATE SET
			username = excluded.username,
			account = excluded.account,
			refresh_token = CASE WHEN excluded.refresh_token != '' THEN excluded.refresh_token ELSE token_cache.refresh_token END,
			access_token = excluded.access_token,
			scopes = excluded.scopes,
			expires_at = excluded.expires_at,
			last_used = excluded.last_used,
			signed_in = 1
	`
	_, err = db.ExecContext(context.Background(), query,
		entry.Account.HomeAccountID,
		strings.ToLower(entry.Account.Username),
		string(account),
		entry.RefreshToken,
		entry.AccessToken,
		strings.Join(entry.Scopes, " "),
		unixOrZero(entry.ExpiresAt),
		lastUsed.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

const tokenColumns = `account, refresh_token, access_token, scopes, expires_at, last_used, signed_in`

// GetToken returns the cached token set of an account.
func (db *DB) GetToken(homeAccountID string) (*models.TokenEntry, error) {
	row := db.QueryRowContext(context.Background(),
		"SELECT "+tokenColumns+" FROM token_cache WHERE home_account_id = ?", homeAccountID)
	return scanToken(row)
}

// GetTokenByUsername returns the most recently used token set for a username.
// Usernames compare case-insensitively.
func (db *DB) GetTokenByUsername(username string) (*models.TokenEntry, error) {
	row := db.QueryRowContext(context.Background(),
		"SELECT "+tokenColumns+" FROM token_cache WHERE username = ? ORDER BY last_used DESC LIMIT 1",
		strings.ToLower(username))
	return scanToken(row)
}

// ListSignedIn returns the token sets of accounts signed in to this program,
// most recently used first.
func (db *DB) ListSignedIn() ([]models.TokenEntry, error) {
	return db.listTokens("SELECT " + tokenColumns + " FROM token_cache WHERE signed_in = 1 ORDER BY last_used DESC, home_account_id")
}

// SignOutAll forgets every signed-in account while keeping refresh tokens,
// so a later silent login by username can restore them.
func (db *DB) SignOutAll() error {
	if _, err := db.ExecContext(context.Background(),
		"UPDATE token_cache SET signed_in = 0, access_token = ''"); err != nil {
		return fmt.Errorf("failed to sign out accounts: %w", err)
	}
	return nil
}

func (db *DB) listTokens(query string) ([]models.TokenEntry, error) {
	rows, err := db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []models.TokenEntry
	for rows.Next() {
		entry, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// TouchToken records that an account was used.
func (db *DB) TouchToken(homeAccountID string, at time.Time) error {
	_, err := db.ExecContext(context.Background(),
		"UPDATE token_cache SET last_used = ? WHERE home_account_id = ?", at.Unix(), homeAccountID)
	if err != nil {
		return fmt.Errorf("failed to touch token: %w", err)
	}
	return nil
}

// DeleteToken removes the token set of an account.
func (db *DB) DeleteToken(homeAccountID string) error {
	_, err := db.ExecContext(context.Background(),
		"DELETE FROM token_cache WHERE home_account_id = ?", homeAccountID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*models.TokenEntry, error) {
	var (
		account             string
		scopes              string
		expiresAt, lastUsed int64
		signedIn            int
		entry               models.TokenEntry
	)
	err := row.Scan(&account, &entry.RefreshToken, &entry.AccessToken, &scopes, &expiresAt, &lastUsed, &signedIn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan token: %w", err)
	}

	if err := json.Unmarshal([]byte(account), &entry.Account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	entry.Scopes = strings.Fields(scopes)
	if expiresAt > 0 {
		entry.ExpiresAt = time.Unix(expiresAt, 0)
	}
	if lastUsed > 0 {
		entry.LastUsed = time.Unix(lastUsed, 0)
	}
	entry.Account.LastUsed = entry.LastUsed
	entry.SignedIn = signedIn == 1
	return &entry, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
