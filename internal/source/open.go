// Package source selects and opens the configured row source.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/core"
	"github.com/JonMunkholm/seedexport/internal/source/postgres"
	"github.com/JonMunkholm/seedexport/internal/source/rest"
	"github.com/JonMunkholm/seedexport/internal/source/sqlite"
)

// Opened is an open row source and the function that releases it.
type Opened struct {
	core.RowSource
	Close func() error
}

// Open builds the row source selected by cfg.Source.Kind.
func Open(ctx context.Context, cfg *config.Config) (*Opened, error) {
	switch cfg.Source.Kind {
	case config.SourceREST:
		src, err := rest.New(rest.Config{
			BaseURL:        cfg.Source.URL,
			APIKey:         cfg.Source.APIKey,
			Schema:         cfg.Source.Schema,
			Timeout:        cfg.Source.Timeout,
			MaxRetries:     cfg.Source.MaxRetries,
			InitialBackoff: cfg.Source.InitialBackoff,
			MaxBackoff:     cfg.Source.MaxBackoff,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("using rest source", "url", cfg.Source.URL, "schema", cfg.Source.Schema)
		return &Opened{RowSource: src, Close: func() error { return nil }}, nil

	case config.SourcePostgres:
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "name", postgres.DatabaseName(cfg.Database.URL))
		return &Opened{
			RowSource: postgres.New(pool, cfg.Source.Schema),
			Close:     func() error { pool.Close(); return nil },
		}, nil

	case config.SourceSQLite:
		db, err := sqlite.Open(cfg.Source.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("opened sqlite database", "path", cfg.Source.SQLitePath)
		return &Opened{RowSource: sqlite.New(db), Close: db.Close}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
