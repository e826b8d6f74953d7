package draft

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vellumhq/vellum/internal/db"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/util/compression"
)

// Store persists the draft queue so staged work survives restarts.
type Store interface {
	Load(repo model.RepoID) ([]Change, error)
	Replace(repo model.RepoID, changes []Change) error
	Clear(repo model.RepoID) error
}

// SQLiteStore writes the queue to the staged_changes table. Operations are
// stored as one zstd-compressed JSON blob per change.
type SQLiteStore struct {
	db         db.DB
	compressor compression.Compressor
}

func NewSQLiteStore(database db.DB) *SQLiteStore {
	return &SQLiteStore{
		db:         database,
		compressor: compression.Zstd{},
	}
}

func (s *SQLiteStore) Load(repo model.RepoID) ([]Change, error) {
	rows, err := s.db.Query(`SELECT id, kind, title, primary_path, operations, metadata, created_at
		FROM staged_changes WHERE repo = ? ORDER BY position`, string(repo))
	if err != nil {
		return nil, fmt.Errorf("load staged changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var (
			c         Change
			id        string
			kind      string
			opsBlob   []byte
			metadata  sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&id, &kind, &c.Title, &c.PrimaryPath, &opsBlob, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan staged change: %w", err)
		}

		opsJSON, err := s.compressor.Decompress(opsBlob)
		if err != nil {
			return nil, fmt.Errorf("decompress operations for change %s: %w", id, err)
		}
		if err := json.Unmarshal(opsJSON, &c.Operations); err != nil {
			return nil, fmt.Errorf("decode operations for change %s: %w", id, err)
		}

		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for change %s: %w", id, err)
			}
		}

		c.ID = model.ChangeID(id)
		c.Kind = Kind(kind)
		c.CreatedAt = createdAt
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Replace rewrites the persisted queue in one transaction so the stored
// order always matches the in-memory queue.
func (s *SQLiteStore) Replace(repo model.RepoID, changes []Change) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("begin staged changes tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM staged_changes WHERE repo = ?`, string(repo)); err != nil {
		return fmt.Errorf("clear staged changes: %w", err)
	}

	for i, c := range changes {
		opsJSON, err := json.Marshal(c.Operations)
		if err != nil {
			return fmt.Errorf("encode operations for change %s: %w", c.ID, err)
		}
		opsBlob, err := s.compressor.Compress(opsJSON)
		if err != nil {
			return fmt.Errorf("compress operations for change %s: %w", c.ID, err)
		}

		var metadata interface{}
		if len(c.Metadata) > 0 {
			metaJSON, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata for change %s: %w", c.ID, err)
			}
			metadata = string(metaJSON)
		}

		_, err = tx.Exec(`INSERT INTO staged_changes
			(id, repo, position, kind, title, primary_path, operations, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(c.ID), string(repo), i, string(c.Kind), c.Title, c.PrimaryPath,
			opsBlob, metadata, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert staged change %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Clear(repo model.RepoID) error {
	_, err := s.db.Exec(`DELETE FROM staged_changes WHERE repo = ?`, string(repo))
	return err
}
