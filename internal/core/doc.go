// Package core provides the business logic for exporting seed data.
//
// This package is the heart of the exporter, containing all domain logic
// independent of the row source, the CLI, or the HTTP surface. It can be used
// by the command, web handlers, or tests without modification.
//
// # Architecture
//
// The package is organized around the stages of one export run:
//
//   - Table Registry: ordered [TableSpec] entries describing each destination
//     table (primary key, optional unique constraint, excluded columns).
//   - Value Encoder: [ClassifyRules.Classify] turns a raw cell into a closed
//     [Value] variant and [Literal] renders it as a SQL literal.
//   - Row Fetcher: [Fetch] reads every row of one table from a [RowSource].
//   - Statement Compiler: [Compiler.Compile] folds the rows into one
//     idempotent INSERT ... ON CONFLICT ... DO UPDATE statement.
//   - Artifact Writer: [Artifact] concatenates the header, one section per
//     table in registry order, and the closing banner.
//
// # Table Registry
//
// Default tables are registered at init time using [Register]:
//
//	core.Register(core.TableSpec{
//	    Name:             "alpaca_stocks",
//	    Group:            "finance",
//	    PrimaryKey:       "id",
//	    UniqueConstraint: "symbol",
//	})
//
// A registry can also be loaded from YAML with [LoadRegistryFile].
//
// # Error Handling
//
// A table whose rows cannot be fetched or compiled is logged and skipped; the
// run fails with [ErrAllTablesFailed] only when every table failed. Errors are
// mapped to coded messages with [MapError] for logs and API responses.
package core
