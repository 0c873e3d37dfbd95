package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// TableSpec describes how one destination table is exported.
type TableSpec struct {
	// Name is the destination table: "alpaca_stocks".
	Name string `yaml:"name" json:"name"`

	// Group is a display label: "finance", "sports".
	Group string `yaml:"group" json:"group,omitempty"`

	// PrimaryKey is the table's primary key column.
	PrimaryKey string `yaml:"primary_key" json:"primaryKey"`

	// UniqueConstraint, when set, replaces PrimaryKey as the upsert target.
	UniqueConstraint string `yaml:"unique_constraint" json:"uniqueConstraint,omitempty"`

	// ExcludeColumns are never exported.
	ExcludeColumns []string `yaml:"exclude_columns" json:"excludeColumns,omitempty"`

	// JSONColumns are always encoded as jsonb, whatever their runtime shape.
	JSONColumns []string `yaml:"json_columns" json:"jsonColumns,omitempty"`
}

// ConflictColumn returns the column used in the ON CONFLICT clause.
func (t TableSpec) ConflictColumn() string {
	if t.UniqueConstraint != "" {
		return t.UniqueConstraint
	}
	return t.PrimaryKey
}

// Excludes reports whether col is excluded from the export.
func (t TableSpec) Excludes(col string) bool {
	return slices.Contains(t.ExcludeColumns, col)
}

// IsJSONColumn reports whether col is always encoded as a JSON document.
func (t TableSpec) IsJSONColumn(col string) bool {
	return slices.Contains(t.JSONColumns, col)
}

// Validate checks that the table definition is usable.
func (t TableSpec) Validate() error {
	var errs []string

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "name is required")
	}
	if strings.TrimSpace(t.PrimaryKey) == "" {
		errs = append(errs, "primary key is required")
	}
	if t.Excludes(t.ConflictColumn()) {
		errs = append(errs, fmt.Sprintf("conflict column %q cannot be excluded", t.ConflictColumn()))
	}
	for _, col := range t.JSONColumns {
		if t.Excludes(col) {
			errs = append(errs, fmt.Sprintf("json column %q is also excluded", col))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: table %q: %s", ErrInvalidRegistry, t.Name, strings.Join(errs, "; "))
	}
	return nil
}

// RowSource is the capability to read every row of one table.
// Implementations return an empty slice, not an error, for an empty table.
type RowSource interface {
	FetchRows(ctx context.Context, table TableSpec) ([]Row, error)
}

// RowSourceFunc adapts a function to the RowSource interface.
type RowSourceFunc func(ctx context.Context, table TableSpec) ([]Row, error)

// FetchRows calls f(ctx, table).
func (f RowSourceFunc) FetchRows(ctx context.Context, table TableSpec) ([]Row, error) {
	return f(ctx, table)
}

// CompiledStatement is the compiled section of the artifact for one table.
type CompiledStatement struct {
	Table    string
	Columns  []string // Empty when the table had no rows
	RowCount int
	Body     string // The upsert statement, or the no-data comment
}

// Empty reports whether the table had no rows.
func (c CompiledStatement) Empty() bool {
	return c.RowCount == 0
}

// Text returns the banner followed by the body.
func (c CompiledStatement) Text() string {
	var b strings.Builder
	b.WriteString(sectionRule)
	b.WriteString("\n-- Table: ")
	b.WriteString(c.Table)
	b.WriteString("\n")
	b.WriteString(sectionRule)
	b.WriteString("\n")
	b.WriteString(c.Body)
	b.WriteString("\n")
	return b.String()
}

// TableStatus is the outcome of exporting one table.
type TableStatus string

const (
	StatusExported TableStatus = "exported"
	StatusEmpty    TableStatus = "empty"
	StatusFailed   TableStatus = "failed"
)

// TableOutcome records what happened to one table during a run.
type TableOutcome struct {
	Table  string      `json:"table"`
	Status TableStatus `json:"status"`
	Rows   int         `json:"rows"`
	Error  string      `json:"error,omitempty"`
	Code   string      `json:"code,omitempty"`
}
