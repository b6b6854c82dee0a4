package kv

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Backend: BackendSQLite, SQLitePath: t.TempDir() + "/kv.db"})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Backend: BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "p:"})
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Options{Backend: "etcd"})
	require.ErrorContains(t, err, `unknown kv backend "etcd"`)

	_, err = Open(ctx, Options{Backend: BackendPostgres})
	require.ErrorContains(t, err, "requires a DSN")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = Open(ctx, Options{Backend: BackendRedis, RedisAddr: addr})
	require.ErrorContains(t, err, "redis ping")
}

func TestOpen_MigrationFailureClosesDB(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	_, err := Open(context.Background(), Options{Backend: BackendSQLite})
	require.ErrorContains(t, err, "migration error: boom")
}

func TestOpen_PostgresRunsMigrationsInPostgresDir(t *testing.T) {
	origUp := gooseUpContext
	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	defer func() { gooseUpContext = origUp }()

	s, err := Open(context.Background(), Options{Backend: BackendPostgres, PostgresDSN: "postgres://u:p@localhost:1/db"})
	require.NoError(t, err)
	require.IsType(t, &PostgresStore{}, s)
	require.Equal(t, "postgres", gotDir)
	require.NoError(t, s.Close())
}
