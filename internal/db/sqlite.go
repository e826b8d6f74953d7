package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	path string
	conn *sql.DB
}

func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// InitDB opens the database and creates the schema. The queue is written on
// every stage while reads serve the API, so WAL mode, a busy timeout and
// foreign key enforcement are applied unless the caller's DSN already picked
// its own parameters.
func (s *SQLite) InitDB() error {
	dsn := s.path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
	}

	var err error
	s.conn, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return err
	}

	// staged_changes holds the draft queue between restarts. Operations are
	// stored as a compressed JSON blob; position preserves queue order since
	// ids are random.
	_, err = s.conn.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT UNIQUE,
    email TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS staged_changes (
    id TEXT PRIMARY KEY,
    repo TEXT NOT NULL,
    position INTEGER NOT NULL,
    kind TEXT NOT NULL,
    title TEXT,
    primary_path TEXT NOT NULL,
    operations BLOB NOT NULL,
    metadata TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_staged_changes_repo_position
    ON staged_changes(repo, position);`)
	if err != nil {
		return err
	}

	dbLogger.Info().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Conn() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLite) Query(query string, args ...any) (*sql.Rows, error) {
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.Query(query, args...)
}

func (s *SQLite) Exec(query string, args ...any) (sql.Result, error) {
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.Exec(query, args...)
}
