// Package core provides the business logic for exporting seed data.
//
// # Error Codes Reference
//
// This file defines the exporter's error taxonomy and the coded messages used
// in logs and API responses. Operators can grep logs by code.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unavailable: rows for a table could not be fetched
//	         Action: Check the source URL, credentials and network; the table is skipped
//	         Sentinel: ErrSourceUnavailable
//
//	SRC002 - Access denied: the source rejected the credentials
//	         Action: Use a key that can read every exported table
//	         Patterns: "status 401", "status 403", "permission denied"
//
//	SRC003 - Unknown table: the source has no such table
//	         Action: Remove the table from the registry or create it at the source
//	         Patterns: "status 404", "does not exist", "no such table"
//
// # Shape Errors (SHP001-SHP099)
//
//	SHP001 - Divergent row shape: a row's columns differ from the first row
//	         Action: Make every row of the table carry the same columns
//	         Sentinel: ErrDivergentRowShape
//
//	SHP002 - Unencodable value: a cell could not be written as a SQL literal
//	         Action: Inspect the cell; NaN inside JSON documents is not representable
//	         Sentinel: ErrUnencodableValue
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - All tables failed: no table produced a section
//	         Action: Check earlier SRC/SHP log entries for the cause
//	         Sentinel: ErrAllTablesFailed
//
//	RUN002 - Run cancelled: the deadline passed or the process was interrupted
//	         Patterns: "context canceled", "context deadline exceeded"
//
//	RUN003 - Write failed: the artifact could not be written
//	         Sentinel: ErrWriteArtifact
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid registry: a table spec is missing fields or contradicts itself
//	         Sentinel: ErrInvalidRegistry
//
//	CFG002 - Unknown table: the requested table is not registered
//	         Sentinel: ErrUnknownTable
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Matching
//
// Sentinels are matched with errors.Is first, in the order listed in
// errorSentinels. Remaining errors fall through to case-insensitive substring
// patterns; the first match wins, so specific patterns come first.
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceUnavailable wraps any failure to read a table from its source.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDivergentRowShape is returned when rows of one table disagree on columns.
	ErrDivergentRowShape = errors.New("divergent row shape")

	// ErrUnencodableValue is returned when a cell cannot be rendered as a literal.
	ErrUnencodableValue = errors.New("unencodable value")

	// ErrAllTablesFailed is returned by a run in which no table succeeded.
	ErrAllTablesFailed = errors.New("all tables failed")

	// ErrInvalidRegistry is returned for malformed table specs.
	ErrInvalidRegistry = errors.New("invalid table registry")

	// ErrUnknownTable is returned when a table name is not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrWriteArtifact wraps failures writing the artifact file.
	ErrWriteArtifact = errors.New("write artifact")
)

// TableError ties an error to the table it occurred in.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string {
	return fmt.Sprintf("table %s: %v", e.Table, e.Err)
}

func (e *TableError) Unwrap() error {
	return e.Err
}

// UserMessage provides operator-facing error information with a code.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for log search
}

type errorSentinel struct {
	err error
	msg UserMessage
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorSentinels is checked before errorPatterns. ErrSourceUnavailable is not
// listed: source errors are refined by errorPatterns and fall back to SRC001.
// ErrAllTablesFailed comes first because it wraps the per-table failures.
var errorSentinels = []errorSentinel{
	{
		err: ErrAllTablesFailed,
		msg: UserMessage{
			Message: "No table could be exported",
			Action:  "Check earlier table warnings for the cause",
			Code:    "RUN001",
		},
	},
	{
		err: ErrDivergentRowShape,
		msg: UserMessage{
			Message: "Rows of this table have different columns",
			Action:  "Make every row of the table carry the same columns",
			Code:    "SHP001",
		},
	},
	{
		err: ErrUnencodableValue,
		msg: UserMessage{
			Message: "A value could not be written as a SQL literal",
			Action:  "Inspect the offending cell at the source",
			Code:    "SHP002",
		},
	},
	{
		err: ErrWriteArtifact,
		msg: UserMessage{
			Message: "The artifact could not be written",
			Action:  "Check that the output directory exists and is writable",
			Code:    "RUN003",
		},
	},
	{
		err: ErrInvalidRegistry,
		msg: UserMessage{
			Message: "The table registry is invalid",
			Action:  "Fix the table definition named in the error",
			Code:    "CFG001",
		},
	},
	{
		err: ErrUnknownTable,
		msg: UserMessage{
			Message: "The table is not registered",
			Action:  "Verify the table name",
			Code:    "CFG002",
		},
	},
}

// errorPatterns maps technical error text (case-insensitive) to messages.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Source access (SRC002-SRC003)
	// =========================================================================
	{
		pattern: "status 401",
		msg: UserMessage{
			Message: "The source rejected the credentials",
			Action:  "Use a key that can read every exported table",
			Code:    "SRC002",
		},
	},
	{
		pattern: "status 403",
		msg: UserMessage{
			Message: "The source rejected the credentials",
			Action:  "Use a key that can read every exported table",
			Code:    "SRC002",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "The source denied access to the table",
			Action:  "Grant SELECT on the table to the export role",
			Code:    "SRC002",
		},
	},
	{
		pattern: "status 404",
		msg: UserMessage{
			Message: "The source has no such table",
			Action:  "Remove the table from the registry or create it at the source",
			Code:    "SRC003",
		},
	},
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "The source has no such table",
			Action:  "Remove the table from the registry or create it at the source",
			Code:    "SRC003",
		},
	},
	{
		pattern: "no such table",
		msg: UserMessage{
			Message: "The source has no such table",
			Action:  "Remove the table from the registry or create it at the source",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// Cancellation (RUN002)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The export was cancelled",
			Action:  "Run the export again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The export timed out",
			Action:  "Raise EXPORT_TIMEOUT or check source latency",
			Code:    "RUN002",
		},
	},
}

var sourceUnavailableMsg = UserMessage{
	Message: "Rows could not be fetched from the source",
	Action:  "Check the source URL, credentials and network",
	Code:    "SRC001",
}

var defaultErrorMsg = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

// MapError converts a technical error into a coded message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.pattern) {
			return p.msg
		}
	}

	if errors.Is(err, ErrSourceUnavailable) {
		return sourceUnavailableMsg
	}
	return defaultErrorMsg
}

// ErrorCode returns just the code for err.
func ErrorCode(err error) string {
	return MapError(err).Code
}
