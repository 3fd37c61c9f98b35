package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/scanpass/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNew(t *testing.T) {
	m, err := New(dbx.DialectPostgres)
	require.NoError(t, err)
	assert.IsType(t, &PostgresRepositoryManager{}, m)

	m, err = New(dbx.DialectSQLite)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepositoryManager{}, m)

	_, err = New("mysql")
	assert.Error(t, err)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	pg := &PostgresRepositoryManager{}
	assert.IsType(t, &users.PostgresRepository{}, pg.Users(db))
	assert.IsType(t, &sessions.PostgresRepository{}, pg.Sessions(db))

	sq := &SQLiteRepositoryManager{}
	assert.IsType(t, &users.SQLiteRepository{}, sq.Users(db))
	assert.IsType(t, &sessions.SQLiteRepository{}, sq.Sessions(db))
}

func TestRunMigrations_PassesDialect(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := migrationsUp
	defer func() { migrationsUp = orig }()

	var got []dbx.Dialect
	migrationsUp = func(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
		got = append(got, dialect)
		return nil
	}

	require.NoError(t, (&PostgresRepositoryManager{}).RunMigrations(context.Background(), db))
	require.NoError(t, (&SQLiteRepositoryManager{}).RunMigrations(context.Background(), db))
	assert.Equal(t, []dbx.Dialect{dbx.DialectPostgres, dbx.DialectSQLite}, got)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := migrationsUp
	defer func() { migrationsUp = orig }()
	migrationsUp = func(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
		return errors.New("boom")
	}

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
