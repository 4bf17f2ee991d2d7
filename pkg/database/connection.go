package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/weighright/portal/pkg/config"
	"github.com/weighright/portal/pkg/logger"
)

// Dialect identifies the SQL flavour behind a connection
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	dialect Dialect
	config  *config.DatabaseConfig
	logger  *logger.Logger
}

// NewConnection opens the configured sqlite file or postgres server
func NewConnection(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	var (
		dialect Dialect
		dsn     string
	)
	switch cfg.Driver {
	case "sqlite":
		dialect = DialectSQLite
		dsn = buildSQLiteDSN(cfg.Path)
	case "postgres":
		dialect = DialectPostgres
		dsn = buildConnectionString(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	if dialect == DialectSQLite {
		// sqlite serializes writers anyway
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"driver": cfg.Driver,
	}).Info("Database connection established successfully")

	return &DB{
		DB:      sqlDB,
		dialect: dialect,
		config:  cfg,
		logger:  log,
	}, nil
}

// Wrap adopts an already open handle, used with sqlmock in tests
func Wrap(sqlDB *sql.DB, dialect Dialect, log *logger.Logger) *DB {
	return &DB{DB: sqlDB, dialect: dialect, logger: log}
}

func buildSQLiteDSN(path string) string {
	clean := filepath.Clean(path)
	return clean + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// buildConnectionString constructs the PostgreSQL connection string
func buildConnectionString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Dialect reports which SQL flavour the connection speaks
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Rebind rewrites ? placeholders into $n for postgres
func (db *DB) Rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Health checks the database connection health
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}
