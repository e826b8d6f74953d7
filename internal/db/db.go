// Package db owns the embedded sqlite database behind the draft queue and
// the user store.
package db

import (
	"database/sql"

	"github.com/rs/zerolog"
)

// DB is the storage handle shared by the stores. Conn exposes the raw
// connection for callers that manage their own transactions.
type DB interface {
	InitDB() error

	Conn() *sql.DB
	Close() error

	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

var dbLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	dbLogger = l
}
