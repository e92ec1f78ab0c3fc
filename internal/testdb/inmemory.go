// Package testdb provides in-memory databases for tests.
package testdb

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/slugnotes/slugnotes/internal/db"
)

var dbCounter atomic.Int64

// NewAppDBInMemory creates an isolated in-memory AppDB with the schema
// applied. Each call returns a completely separate database, so tests never
// contend on shared files.
func NewAppDBInMemory() (*db.AppDB, error) {
	// Unique name per call; cache=shared keeps the database alive across the
	// pooled connections of a single sql.DB.
	name := fmt.Sprintf("testdb-%d", dbCounter.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)

	sqlDB, err := sql.Open(db.SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}

	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(10)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping in-memory database: %w", err)
	}

	if err := applyFastSQLitePragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply fast SQLite pragmas: %w", err)
	}

	if _, err := sqlDB.Exec(db.Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize in-memory schema: %w", err)
	}

	return db.NewFromSQL(sqlDB), nil
}

func applyFastSQLitePragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA secure_delete=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
