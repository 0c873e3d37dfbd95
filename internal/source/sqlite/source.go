// Package sqlite reads table rows from a SQLite database file through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/seedexport/internal/core"
)

// Open opens the database at dsn for reading. Foreign keys and a busy
// timeout are configured so a concurrently written file does not fail fast.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return db, nil
}

// Source fetches rows with SELECT * ordered by the primary key.
type Source struct {
	db *sql.DB
}

// New returns a Source reading from db.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Query returns the SELECT used for table.
func Query(table core.TableSpec) string {
	q := "SELECT * FROM " + core.QuoteIdent(table.Name)
	if table.PrimaryKey != "" {
		q += " ORDER BY " + core.QuoteIdent(table.PrimaryKey)
	}
	return q
}

// FetchRows implements core.RowSource.
func (s *Source) FetchRows(ctx context.Context, table core.TableSpec) ([]core.Row, error) {
	rows, err := s.db.QueryContext(ctx, Query(table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table.Name, err)
	}
	cols := make([]string, len(types))
	layouts := make([]string, len(types))
	for i, ct := range types {
		cols[i] = ct.Name()
		layouts[i] = zonelessLayout(ct.DatabaseTypeName())
	}

	out := []core.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w", table.Name, len(out)+1, err)
		}

		var row core.Row
		for i, col := range cols {
			v := vals[i]
			if t, ok := v.(time.Time); ok && layouts[i] != "" {
				v = t.Format(layouts[i])
			}
			row.Set(col, v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	return out, nil
}

// zonelessLayout returns the text layout for declared types the driver
// decodes into time.Time without a zone, or "" for other types.
func zonelessLayout(declared string) string {
	switch strings.ToUpper(declared) {
	case "DATE":
		return core.DateLayout
	case "DATETIME", "TIMESTAMP":
		return core.TimestampLayout
	}
	return ""
}
