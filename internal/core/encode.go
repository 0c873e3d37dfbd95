package core

import (
	"fmt"
	"regexp"
	"strings"
)

// Destination column types used in casts.
const (
	JSONType      = "jsonb"
	TimestampType = "timestamptz"
	EmptyArray    = "ARRAY[]::text[]"
)

// Literal renders a classified value as a SQL literal.
//
// String literals use standard quote doubling and assume the destination runs
// with standard_conforming_strings on; backslashes are passed through as-is.
func Literal(v Value) string {
	switch v := v.(type) {
	case Null:
		return "NULL"
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Number:
		switch v {
		case "NaN", "Infinity", "-Infinity":
			return QuoteString(string(v))
		}
		return string(v)
	case Text:
		return QuoteString(string(v))
	case TimestampText:
		return QuoteString(string(v)) + "::" + TimestampType
	case TextArray:
		if len(v) == 0 {
			return EmptyArray
		}
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = QuoteString(s)
		}
		return "ARRAY[" + strings.Join(quoted, ", ") + "]"
	case JSONValue:
		return QuoteString(string(v)) + "::" + JSONType
	default:
		panic(fmt.Sprintf("core.Literal: unhandled value %T", v))
	}
}

// QuoteString wraps s in single quotes, doubling any embedded quote.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Encoder converts raw cells into SQL literals.
type Encoder struct {
	Rules ClassifyRules
}

// Encode classifies raw as table.column and returns its SQL literal.
func (e Encoder) Encode(table TableSpec, column string, raw any) (string, error) {
	v, err := e.Rules.Classify(table, column, raw)
	if err != nil {
		return "", fmt.Errorf("encode %s.%s: %w", table.Name, column, err)
	}
	return Literal(v), nil
}

// bareIdentRegex matches identifiers that PostgreSQL accepts unquoted without
// case folding.
var bareIdentRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedWords are keywords that cannot appear as bare column or table names.
var reservedWords = map[string]bool{
	"all": true, "and": true, "any": true, "array": true, "as": true, "asc": true,
	"case": true, "check": true, "column": true, "constraint": true, "create": true,
	"default": true, "desc": true, "distinct": true, "do": true, "else": true,
	"end": true, "except": true, "false": true, "for": true, "foreign": true,
	"from": true, "grant": true, "group": true, "having": true, "in": true,
	"into": true, "limit": true, "not": true, "null": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "primary": true,
	"references": true, "select": true, "table": true, "then": true, "to": true,
	"true": true, "union": true, "unique": true, "user": true, "using": true,
	"when": true, "where": true, "with": true,
}

// Ident returns name as a SQL identifier, quoting it only when PostgreSQL
// would otherwise fold its case or reject it.
func Ident(name string) string {
	if bareIdentRegex.MatchString(name) && !reservedWords[name] {
		return name
	}
	return QuoteIdent(name)
}

// QuoteIdent always wraps name in double quotes, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
