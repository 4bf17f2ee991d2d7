package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
)

func TestRebind(t *testing.T) {
	pg := &DB{dialect: DialectPostgres}
	lite := &DB{dialect: DialectSQLite}

	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestNewConnection_SQLiteSchema(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "portal.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 1,
	}
	db, err := NewConnection(cfg, logger.NewWithOutput("error", io.Discard))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DialectSQLite, db.Dialect())
	require.NoError(t, db.CreateSchema(context.Background()))
	// idempotent
	require.NoError(t, db.CreateSchema(context.Background()))
	require.NoError(t, db.Health())
}

func TestNewConnection_UnknownDriver(t *testing.T) {
	_, err := NewConnection(&config.DatabaseConfig{Driver: "mongo"}, logger.NewWithOutput("error", io.Discard))
	assert.Error(t, err)
}
