package core

// value.go classifies raw cell values into a closed set of SQL value kinds.
//
// Sources hand back loosely typed cells: JSON-decoded values from the REST
// source, driver values from pgx or SQLite. Classification happens once per
// cell, before encoding, so [Literal] only has to handle seven cases.

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Value is a classified cell. The set of implementations is closed:
// Null, Bool, Number, Text, TimestampText, TextArray and JSONValue.
type Value interface {
	sqlValue()
}

// Null is SQL NULL.
type Null struct{}

// Bool is an unquoted boolean literal.
type Bool bool

// Number holds the decimal text of a numeric value. "NaN", "Infinity" and
// "-Infinity" are kept verbatim.
type Number string

// Text is a plain string literal.
type Text string

// TimestampText is a string literal cast to timestamptz.
type TimestampText string

// TextArray is a text[] literal. A zero-length TextArray is the typed empty array.
type TextArray []string

// JSONValue holds a serialized JSON document cast to jsonb.
type JSONValue string

func (Null) sqlValue()          {}
func (Bool) sqlValue()          {}
func (Number) sqlValue()        {}
func (Text) sqlValue()          {}
func (TimestampText) sqlValue() {}
func (TextArray) sqlValue()     {}
func (JSONValue) sqlValue()     {}

// ClassifyRules holds the column naming heuristics used during classification.
//
// Timestamp detection is by column name only: a string column whose name ends
// with one of TimestampSuffixes, or equals one of TimestampNames, is cast to
// timestamptz. A non-timestamp string in such a column will be mis-cast.
type ClassifyRules struct {
	TimestampSuffixes []string
	TimestampNames    []string
}

// DefaultClassifyRules matches the naming conventions of the dashboard schema.
var DefaultClassifyRules = ClassifyRules{
	TimestampSuffixes: []string{"_at", "_time"},
	TimestampNames:    []string{"timestamp", "last_updated"},
}

// IsTimestampColumn reports whether col is treated as a timestamp column.
func (r ClassifyRules) IsTimestampColumn(col string) bool {
	if slices.Contains(r.TimestampNames, col) {
		return true
	}
	for _, suffix := range r.TimestampSuffixes {
		if suffix != "" && strings.HasSuffix(col, suffix) {
			return true
		}
	}
	return false
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	numericType = reflect.TypeOf(pgtype.Numeric{})
)

// Classify converts one raw cell of table.column into a Value.
//
// Rules apply in priority order: nil, the table's JSON-column override,
// arrays, objects, booleans, numbers, timestamp-named strings, other strings.
// It fails only when a value must become JSON but cannot be serialized.
func (r ClassifyRules) Classify(table TableSpec, column string, raw any) (Value, error) {
	if isNil(raw) {
		return Null{}, nil
	}

	if table.IsJSONColumn(column) {
		return toJSON(raw)
	}

	switch v := raw.(type) {
	case string:
		return r.classifyString(column, v), nil
	case bool:
		return Bool(v), nil
	case json.Number:
		return Number(plainDecimal(v.String())), nil
	case pgtype.InfinityModifier:
		return classifyInfinity(v)
	case time.Time:
		return TimestampText(v.Format(time.RFC3339Nano)), nil
	case []byte:
		return Text(string(v)), nil
	case uuid.UUID:
		return Text(v.String()), nil
	case [16]byte:
		return Text(uuid.UUID(v).String()), nil
	case pgtype.Numeric:
		return classifyNumeric(v)
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil {
			return nil, fmt.Errorf("%w: %T: %w", ErrUnencodableValue, raw, err)
		}
		return r.Classify(table, column, dv)
	}

	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null{}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType, uuidType, numericType:
		return r.Classify(table, column, rv.Interface())
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return classifyArray(rv)
	case reflect.Map, reflect.Struct:
		return toJSON(rv.Interface())
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), rv.Type().Bits()), nil
	case reflect.String:
		return r.classifyString(column, rv.String()), nil
	}

	return Text(fmt.Sprint(rv.Interface())), nil
}

func (r ClassifyRules) classifyString(column, s string) Value {
	if r.IsTimestampColumn(column) {
		return TimestampText(s)
	}
	return Text(s)
}

// classifyArray applies the array rules: empty arrays become the typed empty
// text array, all-string arrays become text[], anything else becomes JSON.
func classifyArray(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return Text(string(rv.Bytes())), nil
	}

	n := rv.Len()
	if n == 0 {
		return TextArray{}, nil
	}

	elems := make(TextArray, 0, n)
	for i := 0; i < n; i++ {
		el := rv.Index(i)
		if el.Kind() == reflect.Interface {
			if el.IsNil() {
				return toJSON(rv.Interface())
			}
			el = el.Elem()
		}
		if el.Kind() != reflect.String {
			return toJSON(rv.Interface())
		}
		elems = append(elems, el.String())
	}
	return elems, nil
}

func classifyNumeric(n pgtype.Numeric) (Value, error) {
	if !n.Valid {
		return Null{}, nil
	}
	v, err := n.Value()
	if err != nil {
		return nil, fmt.Errorf("%w: numeric: %w", ErrUnencodableValue, err)
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: numeric value is %T", ErrUnencodableValue, v)
	}
	return Number(s), nil
}

// classifyInfinity maps pgx's infinite date and timestamp marker to the
// special timestamp input 'infinity' or '-infinity'.
func classifyInfinity(m pgtype.InfinityModifier) (Value, error) {
	switch m {
	case pgtype.Infinity:
		return TimestampText("infinity"), nil
	case pgtype.NegativeInfinity:
		return TimestampText("-infinity"), nil
	}
	return nil, fmt.Errorf("%w: finite infinity modifier without a value", ErrUnencodableValue)
}

// maxDecimalShift bounds exponent expansion in plainDecimal.
const maxDecimalShift = 1000

// plainDecimal rewrites a JSON number in exponent form ("1.5e3") as a plain
// decimal ("1500"). Numbers without an exponent, and exponents beyond
// maxDecimalShift, are returned unchanged.
func plainDecimal(s string) string {
	idx := strings.IndexAny(s, "eE")
	if idx < 0 {
		return s
	}
	exp, err := strconv.Atoi(s[idx+1:])
	if err != nil || exp > maxDecimalShift || exp < -maxDecimalShift {
		return s
	}

	mant := s[:idx]
	sign := ""
	if strings.HasPrefix(mant, "-") {
		sign, mant = "-", mant[1:]
	}
	intPart, fracPart, _ := strings.Cut(mant, ".")
	digits := intPart + fracPart
	point := len(intPart) + exp

	var out string
	switch {
	case point <= 0:
		out = "0." + strings.Repeat("0", -point) + digits
	case point >= len(digits):
		out = digits + strings.Repeat("0", point-len(digits))
	default:
		out = digits[:point] + "." + digits[point:]
	}

	whole, frac, hasFrac := strings.Cut(out, ".")
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	if hasFrac {
		return sign + whole + "." + frac
	}
	return sign + whole
}

// Layouts for driver time values that carry no zone. Emitting them as text
// keeps date and timestamp columns free of session TimeZone conversion.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05.999999"
)

func formatFloat(f float64, bits int) Number {
	switch {
	case math.IsNaN(f):
		return Number("NaN")
	case math.IsInf(f, 1):
		return Number("Infinity")
	case math.IsInf(f, -1):
		return Number("-Infinity")
	}
	return Number(strconv.FormatFloat(f, 'f', -1, bits))
}

// toJSON serializes v without HTML escaping so the document matches what a
// JSON client would have sent.
func toJSON(v any) (Value, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnencodableValue, err)
	}
	return JSONValue(strings.TrimSuffix(buf.String(), "\n")), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
