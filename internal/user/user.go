// Package user persists editor accounts synced from the auth provider webhook.
package user

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vellumhq/vellum/internal/db"
	"github.com/vellumhq/vellum/internal/model"
)

var userLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	userLogger = l
}

var ErrNotFound = errors.New("user not found")

type User struct {
	ID       model.UserID
	Username string
	Email    string
}

// Store reads and writes the users table.
type Store struct {
	db db.DB
}

func NewStore(d db.DB) *Store {
	return &Store{db: d}
}

// Save inserts the user, updating username and email if the id already exists.
func (s *Store) Save(u User) error {
	if u.ID == "" {
		return errors.New("user id is empty")
	}

	_, err := s.db.Exec(`
INSERT INTO users (id, username, email) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email`,
		string(u.ID), u.Username, u.Email)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}

	userLogger.Info().Str("user", string(u.ID)).Str("username", u.Username).Msg("User saved")
	return nil
}

func (s *Store) Get(id model.UserID) (*User, error) {
	rows, err := s.db.Query(`SELECT id, username, COALESCE(email, '') FROM users WHERE id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var u User
	var uid, username string
	if err := rows.Scan(&uid, &username, &u.Email); err != nil {
		return nil, err
	}
	u.ID = model.UserID(uid)
	u.Username = username
	return &u, nil
}

func (s *Store) Delete(id model.UserID) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	userLogger.Info().Str("user", string(id)).Msg("User deleted")
	return nil
}
