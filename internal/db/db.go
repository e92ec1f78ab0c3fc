// Package db opens and initializes the application's SQLite database.
//
// The database is a single shared file accessed through the SQLCipher driver.
// When a key is configured the file is encrypted; without a key it behaves as
// plain SQLite. All schema initialization is idempotent.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDataDirectory is the default root directory for database files.
	DefaultDataDirectory = "./data"

	// DatabaseName is the application database filename.
	DatabaseName = "notes.db"

	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2
)

// AppDB wraps the sql.DB connection for the application database.
type AppDB struct {
	db *sql.DB
}

// NewFromSQL wraps an existing sql.DB as AppDB. The schema must already be
// initialized; tests use this with in-memory databases.
func NewFromSQL(sqlDB *sql.DB) *AppDB {
	return &AppDB{db: sqlDB}
}

// DB returns the underlying sql.DB for direct access.
func (a *AppDB) DB() *sql.DB {
	return a.db
}

// Close closes the database connection.
func (a *AppDB) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ping verifies the connection is alive.
func (a *AppDB) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Open opens (creating if needed) the application database under dataDir.
// keyHex, when non-empty, must be 64 hex characters and enables SQLCipher
// encryption of the database file.
func Open(dataDir, keyHex string) (*AppDB, error) {
	if dataDir == "" {
		dataDir = DefaultDataDirectory
	}

	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseName)
	dsn := dbPath
	if keyHex != "" {
		if len(keyHex) != 64 {
			return nil, fmt.Errorf("database key must be 64 hex characters, got %d", len(keyHex))
		}
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	// Verify connection and, when encrypted, the key. A wrong key fails here.
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verify database connection: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return NewFromSQL(sqlDB), nil
}

func sqliteCommonParams() string {
	// WAL + NORMAL provides good throughput while preserving durability.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
