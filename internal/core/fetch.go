package core

import (
	"context"
	"fmt"
)

// Fetch reads every row of table from source.
//
// A source failure is returned as a *TableError wrapping ErrSourceUnavailable.
// A table with no rows returns an empty, non-nil slice and no error; callers
// rely on that difference to emit a no-data comment instead of skipping.
func Fetch(ctx context.Context, source RowSource, table TableSpec) ([]Row, error) {
	rows, err := source.FetchRows(ctx, table)
	if err != nil {
		return nil, &TableError{
			Table: table.Name,
			Err:   fmt.Errorf("%w: %w", ErrSourceUnavailable, err),
		}
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}
