// Package postgres stores checkpoint records in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gclflow/gclflow/internal/core/checkpoint"
	"github.com/gclflow/gclflow/pkg/serialization"
)

// ErrNoPool is returned when the saver has no connection pool.
var ErrNoPool = errors.New("postgres connection pool is not configured")

// CheckpointSaver implements checkpoint.Saver for PostgreSQL
type CheckpointSaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewCheckpointSaver creates a new PostgreSQL checkpoint saver
func NewCheckpointSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *CheckpointSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &CheckpointSaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "checkpoints",
	}
}

// Connect opens a pool for dsn and ensures the table exists.
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*CheckpointSaver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	saver := NewCheckpointSaver(pool, serializer)
	if err := saver.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return saver, nil
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
	if s.pool == nil {
		return "", ErrNoPool
	}

	data, err := s.serializer.Serialize(record)
	if err != nil {
		return "", fmt.Errorf("failed to serialize checkpoint record: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, model, dataset, epoch, record, codec)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			record = EXCLUDED.record,
			codec = EXCLUDED.codec,
			saved_at = NOW()
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		key.ID(), key.Model, key.Dataset, key.Epoch, data, s.serializer.Name())
	if err != nil {
		return "", fmt.Errorf("%w: %v", checkpoint.ErrSaveFailed, err)
	}

	return fmt.Sprintf("postgres://%s/%s", s.tableName, key.ID()), nil
}

// Load retrieves a record by key
func (s *CheckpointSaver) Load(ctx context.Context, key checkpoint.Key) (*checkpoint.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if s.pool == nil {
		return nil, ErrNoPool
	}

	query := fmt.Sprintf(`SELECT record FROM %s WHERE id = $1`, s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, key.ID()).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	if s.pool == nil {
		return nil, ErrNoPool
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
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
	if s.pool == nil {
		return ErrNoPool
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.pool.Exec(ctx, query, key.ID())
	if err != nil {
		return fmt.Errorf("%w: %v", checkpoint.ErrDeleteFailed, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", checkpoint.ErrCheckpointNotFound, key.ID())
	}
	return nil
}

// CreateTables creates the checkpoint table and its lookup index
func (s *CheckpointSaver) CreateTables(ctx context.Context) error {
	if s.pool == nil {
		return ErrNoPool
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(512) PRIMARY KEY,
			model VARCHAR(255) NOT NULL,
			dataset VARCHAR(255) NOT NULL,
			epoch INTEGER NOT NULL,
			record BYTEA NOT NULL,
			codec VARCHAR(50) NOT NULL,
			saved_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_%s_run ON %s (model, dataset, epoch);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing checkpoints
func (s *CheckpointSaver) buildListQuery(filter checkpoint.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT model, dataset, epoch FROM %s WHERE 1=1", s.tableName)
	args := make([]any, 0)
	argCount := 0

	if filter.Model != "" {
		argCount++
		query += fmt.Sprintf(" AND model = $%d", argCount)
		args = append(args, filter.Model)
	}
	if filter.Dataset != "" {
		argCount++
		query += fmt.Sprintf(" AND dataset = $%d", argCount)
		args = append(args, filter.Dataset)
	}

	query += " ORDER BY model, dataset, epoch"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}
	return query, args
}

// Close closes the database connection pool
func (s *CheckpointSaver) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
