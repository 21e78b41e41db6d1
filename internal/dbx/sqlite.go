package dbx

import (
	"database/sql"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// IsConstraintErr reports whether err is a SQLite constraint violation
// (primary key, unique, foreign key, check). Extended result codes are
// folded down to the primary code before comparison.
func IsConstraintErr(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT
	}
	return false
}

// Timestamps are stored as unix milliseconds (INTEGER columns). The helpers
// below convert between time.Time and the stored representation, including
// the nullable case used by tombstones.

// Millis converts t to its stored representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// MillisPtr converts an optional time to a nullable column value.
func MillisPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// TimeFromMillis converts a stored value back to UTC time.
func TimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimePtrFromMillis converts a nullable column value back to an optional time.
func TimePtrFromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

// NullStr maps an empty string to NULL, matching how optional TEXT columns
// are stored.
func NullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
