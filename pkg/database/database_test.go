package database

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/pkg/config"
)

func TestDSNQuotesUnsafeValues(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: `it's a secret`,
		Name:     "substitutions",
		SSLMode:  "disable",
	})
	assert.Equal(t, `host=db.internal port=5432 user=app password='it\'s a secret' dbname=substitutions sslmode=disable`, dsn)
}

func TestDSNSkipsEmptyValues(t *testing.T) {
	assert.Equal(t, "host=localhost port=5432 dbname=x", DSN(config.DatabaseConfig{Host: "localhost", Port: 5432, Name: "x"}))
}

func TestMigrationSourceVersions(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	for _, version := range []uint{first, next} {
		up, _, err := src.ReadUp(version)
		require.NoError(t, err)
		_ = up.Close()
		down, _, err := src.ReadDown(version)
		require.NoError(t, err)
		_ = down.Close()
	}
}

func TestMigrationPlaceholderTierRequired(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	defer src.Close()

	body, identifier, err := src.ReadUp(2)
	require.NoError(t, err)
	defer body.Close()
	raw, err := io.ReadAll(body)
	require.NoError(t, err)

	assert.Equal(t, "placeholder_tier_required", identifier)
	assert.Contains(t, string(raw), "CHECK (NOT is_placeholder OR placeholder_tier IS NOT NULL)")
}

func TestMigrateStopsOnCancelledContext(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Migrate(ctx, db)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Changed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateReportsDriverFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "postgres")

	mock.ExpectQuery(".*").WillReturnError(errors.New("connection reset"))

	_, err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init migration driver")
	require.NoError(t, mock.ExpectationsWereMet())
}
