package core

import (
	"fmt"
	"slices"
	"strings"
)

// immutableColumn is never reassigned when an existing row is updated.
const immutableColumn = "created_at"

// Compiler turns fetched rows into upsert statements.
type Compiler struct {
	encoder Encoder
}

// NewCompiler creates a Compiler using the given classification rules.
func NewCompiler(rules ClassifyRules) *Compiler {
	return &Compiler{encoder: Encoder{Rules: rules}}
}

// Compile builds the section for one table.
//
// The column list comes from the first row, minus the table's excluded
// columns. Every later row must carry the same column set; a row that does not
// fails the whole table with ErrDivergentRowShape rather than being padded.
// Rows are never reordered.
func (c *Compiler) Compile(table TableSpec, rows []Row) (CompiledStatement, error) {
	stmt := CompiledStatement{Table: table.Name}

	if len(rows) == 0 {
		stmt.Body = "-- No data found for " + table.Name
		return stmt, nil
	}

	columns := exportColumns(table, rows[0])
	if len(columns) == 0 {
		return stmt, fmt.Errorf("%w: first row has no exportable columns", ErrDivergentRowShape)
	}

	tuples := make([]string, len(rows))
	for i, row := range rows {
		if err := checkShape(table, columns, row); err != nil {
			return stmt, fmt.Errorf("row %d: %w", i+1, err)
		}

		values := make([]string, len(columns))
		for j, col := range columns {
			raw, _ := row.Get(col)
			lit, err := c.encoder.Encode(table, col, raw)
			if err != nil {
				return stmt, fmt.Errorf("row %d: %w", i+1, err)
			}
			values[j] = lit
		}
		tuples[i] = "(" + strings.Join(values, ", ") + ")"
	}

	conflict := table.ConflictColumn()
	update := updateColumns(columns, conflict)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(Ident(table.Name))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns, ", "))
	b.WriteString(") VALUES\n")
	b.WriteString(strings.Join(tuples, ",\n"))
	b.WriteString("\nON CONFLICT (")
	b.WriteString(Ident(conflict))
	if len(update) == 0 {
		// Nothing left to reassign; an empty SET list is not valid SQL.
		b.WriteString(") DO NOTHING;")
	} else {
		b.WriteString(") DO UPDATE SET\n")
		assignments := make([]string, len(update))
		for i, col := range update {
			id := Ident(col)
			assignments[i] = "  " + id + " = EXCLUDED." + id
		}
		b.WriteString(strings.Join(assignments, ",\n"))
		b.WriteString(";")
	}

	stmt.Columns = columns
	stmt.RowCount = len(rows)
	stmt.Body = b.String()
	return stmt, nil
}

// exportColumns returns the row's columns in order, minus excluded ones.
func exportColumns(table TableSpec, row Row) []string {
	cols := row.Columns()
	out := cols[:0]
	for _, col := range cols {
		if !table.Excludes(col) {
			out = append(out, col)
		}
	}
	return out
}

// updateColumns returns the columns assigned on conflict: everything except
// the conflict column and the creation timestamp.
func updateColumns(columns []string, conflict string) []string {
	var out []string
	for _, col := range columns {
		if col == conflict || col == immutableColumn {
			continue
		}
		out = append(out, col)
	}
	return out
}

// checkShape verifies that row carries exactly the expected columns,
// ignoring order and excluded columns.
func checkShape(table TableSpec, expected []string, row Row) error {
	got := exportColumns(table, row)
	if len(got) == len(expected) {
		match := true
		for _, col := range got {
			if !slices.Contains(expected, col) {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return fmt.Errorf("%w: columns [%s], expected [%s]",
		ErrDivergentRowShape, strings.Join(got, ", "), strings.Join(expected, ", "))
}

func joinIdents(names []string, sep string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Ident(n)
	}
	return strings.Join(out, sep)
}
