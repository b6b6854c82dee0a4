package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chronovault/internal/dbx"
)

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	return postgresGet(ctx, s.db, key, false)
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	return postgresSet(ctx, s.db, key, value)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("db error: delete kv[%s]: %w", key, err)
	}
	return nil
}

// Update serializes writers of key with a transaction-scoped advisory lock,
// which also covers keys that do not exist yet and so have no row to lock.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("db error: lock kv[%s]: %w", key, err)
		}
		current, err := postgresGet(ctx, tx, key, true)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
				return fmt.Errorf("db error: delete kv[%s]: %w", key, err)
			}
			return nil
		}
		return postgresSet(ctx, tx, key, next)
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func postgresGet(ctx context.Context, db dbx.DBTX, key string, forUpdate bool) ([]byte, error) {
	q := `SELECT value FROM kv WHERE key = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var value []byte
	err := db.QueryRowContext(ctx, q, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: get kv[%s]: %w", key, err)
	}
	return value, nil
}

func postgresSet(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("db error: set kv[%s]: %w", key, err)
	}
	return nil
}
