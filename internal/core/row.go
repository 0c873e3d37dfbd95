package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one record read from a source table. Columns keep the order in which
// the source produced them.
type Row struct {
	cols []string
	vals map[string]any
}

// NewRow builds a Row from alternating column names and values.
// Panics if kv has odd length or a key is not a string.
func NewRow(kv ...any) Row {
	if len(kv)%2 != 0 {
		panic("core.NewRow: odd number of arguments")
	}
	var r Row
	for i := 0; i < len(kv); i += 2 {
		col, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("core.NewRow: column name %v is %T, not string", kv[i], kv[i]))
		}
		r.Set(col, kv[i+1])
	}
	return r
}

// Set assigns a column value. New columns are appended to the column order;
// existing columns keep their position.
func (r *Row) Set(col string, v any) {
	if r.vals == nil {
		r.vals = make(map[string]any)
	}
	if _, exists := r.vals[col]; !exists {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Get returns the value of a column and whether the column is present.
func (r Row) Get(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// Columns returns the column names in source order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.cols)
}

// UnmarshalJSON decodes a JSON object, preserving key order. Numbers are kept
// as json.Number so large integers and decimals survive unchanged. A JSON
// null leaves the row untouched.
func (r *Row) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decode row: expected object, got %v", tok)
	}

	*r = Row{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decode row: expected key, got %v", keyTok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode row column %q: %w", key, err)
		}
		r.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}
