// Command seedexport compiles the rows of registered tables into an
// idempotent PostgreSQL seed script.
//
// Usage:
//
//	seedexport [export] [-o path] [-tables a,b]   write the artifact (default)
//	seedexport serve                             serve the HTTP API
//	seedexport tables                            print the registry
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/seedexport/internal/config"
	"github.com/JonMunkholm/seedexport/internal/core"
	_ "github.com/JonMunkholm/seedexport/internal/core/tables" // Register default tables
	"github.com/JonMunkholm/seedexport/internal/logging"
	"github.com/JonMunkholm/seedexport/internal/source"
	"github.com/JonMunkholm/seedexport/internal/web"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	envLoaded := godotenv.Overload() == nil

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "code", "CFG001", "error", err)
		return 1
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "env_file", envLoaded, "config", cfg.String())

	registry, err := loadRegistry(cfg)
	if err != nil {
		slog.Error("failed to load table registry", "code", core.ErrorCode(err), "error", err)
		return 1
	}
	slog.Info("tables registered",
		"count", registry.Len(),
		"groups", len(registry.Groups()),
	)

	cmd := "export"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "export":
		return runExport(ctx, cfg, registry, args)
	case "serve":
		return runServe(ctx, cfg, registry)
	case "tables":
		printTables(os.Stdout, registry)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want export, serve or tables)\n", cmd)
		return 2
	}
}

// loadRegistry returns the YAML registry when REGISTRY_FILE is set, else the
// compiled-in tables.
func loadRegistry(cfg *config.Config) (*core.Registry, error) {
	if cfg.Export.RegistryFile != "" {
		slog.Info("loading registry file", "path", cfg.Export.RegistryFile)
		return core.LoadRegistryFile(cfg.Export.RegistryFile)
	}
	if core.Default().Len() == 0 {
		return nil, fmt.Errorf("%w: no tables registered", core.ErrInvalidRegistry)
	}
	return core.Default(), nil
}

func classifyRules(cfg *config.Config) core.ClassifyRules {
	return core.ClassifyRules{
		TimestampSuffixes: cfg.Export.TimestampSuffixes,
		TimestampNames:    cfg.Export.TimestampNames,
	}
}

func runExport(ctx context.Context, cfg *config.Config, registry *core.Registry, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", cfg.Export.OutputPath, `output path, "-" for stdout`)
	only := fs.String("tables", "", "comma-separated subset of tables to export")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var names []string
	for _, n := range strings.Split(*only, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	tables, err := registry.Select(names...)
	if err != nil {
		slog.Error("invalid table selection", "code", core.ErrorCode(err), "error", err)
		return 1
	}

	src, err := source.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open source", "kind", cfg.Source.Kind, "error", err)
		return 1
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("close source", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.Export.Timeout)
	defer cancel()

	exporter := core.NewExporter(src, classifyRules(cfg), core.WithLogger(slog.Default()))
	result, err := exporter.Run(ctx, tables)
	if err != nil {
		slog.Error("export failed", "code", core.ErrorCode(err), "error", err)
		return 1
	}

	data := result.Artifact.Bytes()
	if *out == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			slog.Error("write artifact", "code", "RUN003", "error", err)
			return 1
		}
	} else if err := core.WriteFile(*out, data); err != nil {
		slog.Error("write artifact", "code", core.ErrorCode(err), "path", *out, "error", err)
		return 1
	}

	slog.Info("artifact written",
		"path", *out,
		"bytes", len(data),
		"exported", len(result.Artifact.Sections),
		"failed", result.Failed(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return 0
}

func runServe(ctx context.Context, cfg *config.Config, registry *core.Registry) int {
	src, err := source.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open source", "kind", cfg.Source.Kind, "error", err)
		return 1
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("close source", "error", err)
		}
	}()

	exporter := core.NewExporter(src, classifyRules(cfg), core.WithLogger(slog.Default()))
	server := web.NewServer(exporter, registry, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return 1
	}
	return 0
}

func printTables(w io.Writer, registry *core.Registry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tGROUP\tPK\tCONFLICT\tEXCLUDE\tJSON")
	for _, t := range registry.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Name, t.Group, t.PrimaryKey, t.ConflictColumn(),
			strings.Join(t.ExcludeColumns, ","), strings.Join(t.JSONColumns, ","))
	}
	_ = tw.Flush()
}
