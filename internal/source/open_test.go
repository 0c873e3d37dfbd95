package source

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/source/rest"
	"github.com/JonMunkholm/seedexport/internal/source/sqlite"
)

func TestOpen(t *testing.T) {
	t.Run("rest", func(t *testing.T) {
		cfg := &config.Config{Source: config.SourceConfig{
			Kind:   config.SourceREST,
			URL:    "https://abc.supabase.co",
			APIKey: "k",
		}}
		src, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer src.Close()
		if _, ok := src.RowSource.(*rest.Source); !ok {
			t.Errorf("RowSource = %T, want *rest.Source", src.RowSource)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{Source: config.SourceConfig{
			Kind:       config.SourceSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "seed.db"),
		}}
		src, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer src.Close()
		if _, ok := src.RowSource.(*sqlite.Source); !ok {
			t.Errorf("RowSource = %T, want *sqlite.Source", src.RowSource)
		}
	})

	t.Run("rest missing key", func(t *testing.T) {
		cfg := &config.Config{Source: config.SourceConfig{Kind: config.SourceREST, URL: "https://abc.supabase.co"}}
		if _, err := Open(context.Background(), cfg); err == nil {
			t.Fatal("Open() expected error")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := &config.Config{Source: config.SourceConfig{Kind: "oracle"}}
		if _, err := Open(context.Background(), cfg); err == nil {
			t.Fatal("Open() expected error")
		}
	})
}
