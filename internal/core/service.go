package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Exporter runs seed exports against one row source.
//
// Tables are processed one at a time: each is fully fetched before it is
// compiled, and the only shared state is the artifact being assembled.
type Exporter struct {
	source   RowSource
	compiler *Compiler
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithLogger sets the logger used for per-table progress.
func WithLogger(l *slog.Logger) ExporterOption {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunID overrides run id generation.
func WithRunID(newID func() string) ExporterOption {
	return func(e *Exporter) {
		if newID != nil {
			e.newRunID = newID
		}
	}
}

// NewExporter creates an Exporter reading from source.
func NewExporter(source RowSource, rules ClassifyRules, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		source:   source,
		compiler: NewCompiler(rules),
		logger:   slog.Default(),
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExportResult is the outcome of one run.
type ExportResult struct {
	Artifact *Artifact
	Outcomes []TableOutcome
	Duration time.Duration
}

// Failed returns the number of tables that produced no section.
func (r *ExportResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			n++
		}
	}
	return n
}

// ExportTable fetches and compiles a single table.
func (e *Exporter) ExportTable(ctx context.Context, table TableSpec) (CompiledStatement, error) {
	rows, err := Fetch(ctx, e.source, table)
	if err != nil {
		return CompiledStatement{Table: table.Name}, err
	}

	stmt, err := e.compiler.Compile(table, rows)
	if err != nil {
		return stmt, &TableError{Table: table.Name, Err: err}
	}
	return stmt, nil
}

// Run exports every table in order and assembles the artifact.
//
// A table that fails is logged, left out of the artifact, and recorded in
// the outcomes; the run continues. Run returns ErrAllTablesFailed together
// with the (section-less) result when no table succeeded. Cancellation of ctx
// aborts the run.
func (e *Exporter) Run(ctx context.Context, tables []TableSpec) (*ExportResult, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables to export", ErrInvalidRegistry)
	}

	start := e.now()
	artifact := &Artifact{
		RunID:       e.newRunID(),
		GeneratedAt: start,
		Tables:      tables,
	}
	result := &ExportResult{Artifact: artifact}
	logger := e.logger.With("run_id", artifact.RunID)

	logger.Info("export started", "tables", len(tables))

	var failures []error
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("export cancelled before %s: %w", table.Name, err)
		}

		tableStart := time.Now()
		stmt, err := e.ExportTable(ctx, table)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("export cancelled during %s: %w", table.Name, ctxErr)
			}
			code := ErrorCode(err)
			logger.Warn("table skipped",
				"table", table.Name,
				"code", code,
				"error", err,
			)
			result.Outcomes = append(result.Outcomes, TableOutcome{
				Table:  table.Name,
				Status: StatusFailed,
				Error:  err.Error(),
				Code:   code,
			})
			failures = append(failures, err)
			continue
		}

		status := StatusExported
		if stmt.Empty() {
			status = StatusEmpty
		}
		logger.Info("table exported",
			"table", table.Name,
			"rows", stmt.RowCount,
			"status", status,
			"duration_ms", time.Since(tableStart).Milliseconds(),
		)
		artifact.Sections = append(artifact.Sections, stmt)
		result.Outcomes = append(result.Outcomes, TableOutcome{
			Table:  table.Name,
			Status: status,
			Rows:   stmt.RowCount,
		})
	}

	result.Duration = e.now().Sub(start)

	if len(failures) == len(tables) {
		logger.Error("export failed", "code", "RUN001", "tables", len(tables))
		return result, fmt.Errorf("%w: %w", ErrAllTablesFailed, errors.Join(failures...))
	}

	logger.Info("export completed",
		"exported", len(artifact.Sections),
		"failed", len(failures),
		"checksum", artifact.Checksum(),
	)
	return result, nil
}
