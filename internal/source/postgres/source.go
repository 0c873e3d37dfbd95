// Package postgres reads table rows directly from PostgreSQL with pgx.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/core"
)

// Querier is the subset of *pgxpool.Pool used by Source.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens and pings a connection pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// DatabaseName returns the database name from a connection URL, or "" when
// the URL cannot be parsed. It never returns credentials.
func DatabaseName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// Source fetches rows with SELECT * ordered by the primary key.
type Source struct {
	db     Querier
	schema string
}

// New returns a Source reading from db. A non-empty schema qualifies every
// table name.
func New(db Querier, schema string) *Source {
	return &Source{db: db, schema: schema}
}

// Query returns the SELECT used for table.
func (s *Source) Query(table core.TableSpec) string {
	name := pgx.Identifier{table.Name}
	if s.schema != "" {
		name = pgx.Identifier{s.schema, table.Name}
	}
	q := "SELECT * FROM " + name.Sanitize()
	if table.PrimaryKey != "" {
		q += " ORDER BY " + pgx.Identifier{table.PrimaryKey}.Sanitize()
	}
	return q
}

// FetchRows implements core.RowSource.
func (s *Source) FetchRows(ctx context.Context, table core.TableSpec) ([]core.Row, error) {
	rows, err := s.db.Query(ctx, s.Query(table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	oids := make([]uint32, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
		oids[i] = f.DataTypeOID
	}

	out := []core.Row{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", table.Name, len(out)+1, err)
		}
		var row core.Row
		for i, col := range cols {
			row.Set(col, zonelessValue(oids[i], vals[i]))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table.Name, err)
	}
	return out, nil
}

// zonelessValue renders date and timestamp (without time zone) values as
// text. pgx decodes both into UTC time.Time values, which would otherwise be
// exported as timestamptz and shifted by the destination's session TimeZone.
func zonelessValue(oid uint32, v any) any {
	var layout string
	switch oid {
	case pgtype.DateOID, pgtype.DateArrayOID:
		layout = core.DateLayout
	case pgtype.TimestampOID, pgtype.TimestampArrayOID:
		layout = core.TimestampLayout
	default:
		return v
	}

	switch t := v.(type) {
	case time.Time:
		return t.Format(layout)
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = zonelessValue(oid, el)
		}
		return out
	}
	return v
}
