// Package database opens the relational store and owns its schema. The same
// queries run on Postgres (lib/pq) and SQLite (modernc.org/sqlite); Dialect
// captures the few places they differ.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect describes SQL differences between supported drivers.
type Dialect struct {
	Name string
	// ForUpdate is appended to row reads that precede a write in the same tx.
	ForUpdate string
	timestamp string
	boolean   string
}

var (
	Postgres = Dialect{Name: "postgres", ForUpdate: " FOR UPDATE", timestamp: "TIMESTAMPTZ", boolean: "BOOLEAN"}
	SQLite   = Dialect{Name: "sqlite", timestamp: "TEXT", boolean: "INTEGER"}
)

// timeLayout is fixed width so SQLite TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Time converts t into the driver's bind value.
func (d Dialect) Time(t time.Time) any {
	t = t.UTC().Truncate(time.Microsecond)
	if d.Name == SQLite.Name {
		return t.Format(timeLayout)
	}
	return t
}

// NullTime converts an optional time into a bind value.
func (d Dialect) NullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.Time(*t)
}

// Open connects and pings the database.
func Open(ctx context.Context, driver, dsn string, maxOpen int) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect.Name == SQLite.Name {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
	} else if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, dialect, nil
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	r := strings.NewReplacer("{{ts}}", d.timestamp, "{{bool}}", d.boolean)
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique or primary key violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Time scans timestamps stored either natively or as TEXT.
type Time struct {
	T     time.Time
	Valid bool
}

func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.T, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.T, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into database.Time", src)
	}
}

func (t *Time) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.T, t.Valid = parsed.UTC(), true
	return nil
}

// Ptr returns nil for NULL.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.T
	return &v
}
