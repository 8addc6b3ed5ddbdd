package tokenstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_tokens (
	account_id TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLite persists session tokens across process restarts, so accounts that
// authenticated before a restart reconnect without a new code challenge
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and if needed creates) the token database
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("token database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Load implements TokenStore
func (s *SQLite) Load(accountID string) (string, error) {
	var token string
	err := s.db.QueryRow(
		"SELECT token FROM session_tokens WHERE account_id = ?", accountID,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

// Save implements TokenStore
func (s *SQLite) Save(accountID, token string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_tokens (account_id, token, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		accountID, token, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

// Delete implements TokenStore
func (s *SQLite) Delete(accountID string) error {
	if _, err := s.db.Exec("DELETE FROM session_tokens WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// Close implements TokenStore
func (s *SQLite) Close() error {
	return s.db.Close()
}
