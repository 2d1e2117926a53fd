package cache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrMiss is returned by typed getters when the key is absent.
var ErrMiss = errors.New("cache: key not found")

// Store keeps per-session key/value state in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Session is the key/value space of one client session.
// It lives until Clear is called or it is pruned.
type Session struct {
	store *Store
	id    string
}

// StoreStats contains store statistics
type StoreStats struct {
	Sessions     int
	Values       int
	OldestAccess time.Time
}

// SessionInfo describes a stored session
type SessionInfo struct {
	ID         string
	CreatedAt  time.Time
	AccessedAt time.Time
	Values     int
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewStore initializes the session database at the given path
func NewStore(dbPath string) (*Store, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	// The poller and the controller write concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Session opens the session with the given id, creating it if needed.
func (s *Store) Session(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	now := s.now().Unix()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, created_at, accessed_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET accessed_at = excluded.accessed_at
	`, id, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to open session %s: %w", id, err)
	}
	return &Session{store: s, id: id}, nil
}

// Exists reports whether a session with id is stored.
func (s *Store) Exists(id string) (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Prune removes sessions not accessed within maxIdle and returns how many were removed
func (s *Store) Prune(maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-maxIdle).Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM session_values WHERE session_id IN (SELECT id FROM sessions WHERE accessed_at < ?)",
		cutoff,
	); err != nil {
		return 0, fmt.Errorf("failed to prune session values: %w", err)
	}
	res, err := tx.Exec("DELETE FROM sessions WHERE accessed_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Sessions lists stored sessions, most recently used first
func (s *Store) Sessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.created_at, s.accessed_at, COUNT(v.key)
		FROM sessions s LEFT JOIN session_values v ON v.session_id = s.id
		GROUP BY s.id
		ORDER BY s.accessed_at DESC, s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created, accessed int64
		if err := rows.Scan(&info.ID, &created, &accessed, &info.Values); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(created, 0)
		info.AccessedAt = time.Unix(accessed, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Stats returns store statistics
func (s *Store) Stats() (StoreStats, error) {
	var stats StoreStats

	err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&stats.Sessions)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRow("SELECT COUNT(*) FROM session_values").Scan(&stats.Values)
	if err != nil {
		return stats, err
	}

	var oldestUnix sql.NullInt64
	err = s.db.QueryRow("SELECT MIN(accessed_at) FROM sessions").Scan(&oldestUnix)
	if err != nil && err != sql.ErrNoRows {
		return stats, err
	}
	if oldestUnix.Valid && oldestUnix.Int64 > 0 {
		stats.OldestAccess = time.Unix(oldestUnix.Int64, 0)
	}

	return stats, nil
}

// Close closes the session database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Get retrieves a raw value
// Returns: (value, found, error)
func (s *Session) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.store.db.QueryRow(
		"SELECT value FROM session_values WHERE session_id = ? AND key = ?",
		s.id, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		slog.Warn("session read error", "error", err, "session", s.id, "key", key)
		return nil, false, nil // Treat errors as a miss
	}
	return value, true, nil
}

// Set stores a raw value and marks the session as used
func (s *Session) Set(key string, value []byte) error {
	now := s.store.now().Unix()

	_, err := s.store.db.Exec(`
		INSERT OR REPLACE INTO session_values
		(session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
	`, s.id, key, value, now)
	if err != nil {
		slog.Warn("session write error", "error", err, "session", s.id, "key", key)
		return err
	}

	_, _ = s.store.db.Exec("UPDATE sessions SET accessed_at = ? WHERE id = ?", now, s.id)
	return nil
}

// GetString retrieves a string value, returning ErrMiss when absent.
func (s *Session) GetString(key string) (string, error) {
	v, found, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrMiss
	}
	return string(v), nil
}

// SetString stores a string value.
func (s *Session) SetString(key, value string) error {
	return s.Set(key, []byte(value))
}

// GetJSON decodes the value at key into dest, returning ErrMiss when absent.
func (s *Session) GetJSON(key string, dest any) error {
	v, found, err := s.Get(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrMiss
	}
	if err := json.Unmarshal(v, dest); err != nil {
		return fmt.Errorf("failed to decode session value %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value as JSON and stores it at key.
func (s *Session) SetJSON(key string, value any) error {
	blob, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value %s: %w", key, err)
	}
	return s.Set(key, blob)
}

// Delete removes key from the session.
func (s *Session) Delete(key string) error {
	_, err := s.store.db.Exec("DELETE FROM session_values WHERE session_id = ? AND key = ?", s.id, key)
	return err
}

// Keys lists keys starting with prefix in lexical order.
func (s *Session) Keys(prefix string) ([]string, error) {
	rows, err := s.store.db.Query(
		"SELECT key FROM session_values WHERE session_id = ? AND substr(key, 1, ?) = ? ORDER BY key",
		s.id, len(prefix), prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Clear removes the session and all of its values
func (s *Session) Clear() error {
	if _, err := s.store.db.Exec("DELETE FROM session_values WHERE session_id = ?", s.id); err != nil {
		return fmt.Errorf("failed to clear session values: %w", err)
	}
	if _, err := s.store.db.Exec("DELETE FROM sessions WHERE id = ?", s.id); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// DefaultStorePath returns the default session database path
func DefaultStorePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "session.db" // Fallback to current directory
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "newsdesk", "session.db")
}
