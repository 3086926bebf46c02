package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sundayezeilo/microblog/internal/db"
)

// normalize maps driver errors onto the db sentinels. The driver error is
// kept as text only. libSQL reports errors as plain strings, so constraint
// failures are also recognized by message.
func normalize(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNoRows
	}
	if isDuplicate(err) {
		return fmt.Errorf("%w: %v", db.ErrDuplicate, err)
	}
	return db.Opaque(err)
}

func isDuplicate(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
