// Package sqlite stores checkpoint records in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// CheckpointSaver implements checkpoint.Saver for SQLite
type CheckpointSaver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
	now        func() time.Time
}

// NewCheckpointSaver creates a new SQLite checkpoint saver
func NewCheckpointSaver(db *sql.DB, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &CheckpointSaver{
		db:         db,
		serializer: serializer,
		tableName:  "checkpoints",
		now:        time.Now,
	}
}

// Open opens (or creates) a database file and its checkpoint table.
func Open(ctx context.Context, dsn string, serializer *serialization.Serializer) (*CheckpointSaver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one writer keeps saves sequential and lets ":memory:" share a connection
	db.SetMaxOpenConns(1)

	saver := NewCheckpointSaver(db, serializer)
	if err := saver.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return saver, nil
}

// WithTableName allows overriding the default table name with validation.
// Only alphanumeric and underscore are permitted to prevent SQL injection via identifiers.
func (s *CheckpointSaver) WithTableName(name string) *CheckpointSaver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// Save stores a record, replacing any previous record for the key
func (s *CheckpointSaver) Save(ctx context.Context, key checkpoint.Key, record *checkpoint.Record) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if record == nil {
		return "", checkpoint.ErrEmptyRecord
	}
	if err := record.Validate(); err != nil {
		return "", err
	}

	data, err := s.serializer.Serialize(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize checkpoint record: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (id, model, dataset, epoch, record, codec, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		key.ID(), key.Model, key.Dataset, key.Epoch, data, s.serializer.Name(), s.now().Unix())
	if err != nil {
		return "", fmt.Errorf("%w: %v", checkpoint.ErrSaveFailed, err)
	}

	return fmt.Sprintf("sqlite://%s/%s", s.tableName, key.ID()), nil
}

// Load retrieves a record by key
func (s *CheckpointSaver) Load(ctx context.Context, key checkpoint.Key) (*checkpoint.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT record FROM %s WHERE id = ?`, s.tableName)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, key.ID()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, key.ID())
		}
		return nil, fmt.Errorf("%w: %v", checkpoint.ErrLoadFailed, err)
	}

	var record checkpoint.Record
	if err := s.serializer.Deserialize(data, &record); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint record: %w", err)
	}
	return &record, nil
}

// List returns stored keys ordered by model, dataset and epoch
func (s *CheckpointSaver) List(ctx context.Context, filter checkpoint.Filter) ([]checkpoint.Key, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var keys []checkpoint.Key
	for rows.Next() {
		var k checkpoint.Key
		if err := rows.Scan(&k.Model, &k.Dataset, &k.Epoch); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes a record by key
func (s *CheckpointSaver) Delete(ctx context.Context, key checkpoint.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, key.ID())
	if err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrDeleteFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, key.ID())
	}
	return nil
}

// CreateTables creates the checkpoint table and its lookup index
func (s *CheckpointSaver) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			dataset TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			record BLOB NOT NULL,
			codec TEXT NOT NULL,
			saved_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_run ON %s (model, dataset, epoch);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *CheckpointSaver) buildListQuery(filter checkpoint.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT model, dataset, epoch FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0)

	if filter.Model != "" {
		query += " AND model = ?"
		args = append(args, filter.Model)
	}
	if filter.Dataset != "" {
		query += " AND dataset = ?"
		args = append(args, filter.Dataset)
	}

	query += " ORDER BY model, dataset, epoch"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return query, args
}

// Close closes the database connection
func (s *CheckpointSaver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
