package db

import (
	"database/sql"
	"errors"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver name.
	SQLiteDriverName = "sqlite3_slugnotes"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{})
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure on the
// given column (as "table.column"). The store layer relies on this to turn the
// database-level slug uniqueness constraint into a typed application error.
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	if column == "" {
		return true
	}
	return strings.Contains(sqliteErr.Error(), column)
}
