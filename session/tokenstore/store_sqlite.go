package tokenstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mealpoint/portal/identity"
)

const sqliteBusyTimeoutMs = 5000

const sessionSchema = `
CREATE TABLE IF NOT EXISTS portal_session (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	principal TEXT NOT NULL,
	role TEXT NOT NULL,
	must_change_password INTEGER NOT NULL,
	saved_at TEXT NOT NULL
)`

// SQLiteStore persists the session as a single row in a SQLite database.
// Useful for deployments that already carry the portal's SQLite state file
// and want the session in the same place.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// ensures the session table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("[NewSQLiteStore] path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, errors.Wrap(err, "[NewSQLiteStore] create directory")
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=%d", path, sqliteBusyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[NewSQLiteStore] open database")
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[NewSQLiteStore] create schema")
	}

	return &SQLiteStore{db: db}, nil
}

// Load reads the single session row. A missing row or one with an
// unparseable role loads as absent.
func (s *SQLiteStore) Load() (*PersistedSession, error) {
	var (
		token      string
		principal  string
		rawRole    string
		mustChange int
	)

	err := s.db.QueryRow(
		`SELECT token, principal, role, must_change_password FROM portal_session WHERE id = 1`,
	).Scan(&token, &principal, &rawRole, &mustChange)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[SQLiteStore.Load] query")
	}

	role, err := identity.ParseRole(rawRole)
	if err != nil {
		log.Warn().Str("role", rawRole).Msg("Persisted session has an unknown role, treating as absent")
		return nil, nil
	}

	persisted := &PersistedSession{
		Token: token,
		Identity: identity.Identity{
			PrincipalName:      principal,
			Role:               role,
			MustChangePassword: mustChange != 0,
		},
	}
	if !persisted.Complete() {
		return nil, nil
	}
	return persisted, nil
}

// Save replaces the single session row.
func (s *SQLiteStore) Save(session *PersistedSession) error {
	if !session.Complete() {
		return errors.New("[SQLiteStore.Save] refusing to persist an incomplete session")
	}

	mustChange := 0
	if session.Identity.MustChangePassword {
		mustChange = 1
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO portal_session (id, token, principal, role, must_change_password, saved_at)
		 VALUES (1, ?, ?, ?, ?, ?)`,
		session.Token,
		session.Identity.PrincipalName,
		string(session.Identity.Role),
		mustChange,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrap(err, "[SQLiteStore.Save] upsert")
	}
	return nil
}

// Clear removes the session row. Clearing an empty table is not an error.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM portal_session WHERE id = 1`); err != nil {
		return errors.Wrap(err, "[SQLiteStore.Clear] delete")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
