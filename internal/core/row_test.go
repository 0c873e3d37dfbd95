package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewRow(t *testing.T) {
	r := NewRow("id", 1, "symbol", "BTC", "id", 2)

	if got := strings.Join(r.Columns(), ","); got != "id,symbol" {
		t.Errorf("Columns() = %s, want id,symbol", got)
	}
	if v, _ := r.Get("id"); v != 2 {
		t.Errorf("Get(id) = %v, want 2 (later Set wins, position kept)", v)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestNewRow_Panics(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
	}{
		{"odd args", []any{"id"}},
		{"non-string key", []any{1, "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewRow(tt.kv...)
		})
	}
}

func TestRow_ColumnsIsCopy(t *testing.T) {
	r := NewRow("a", 1, "b", 2)
	cols := r.Columns()
	cols[0] = "zzz"
	if r.Columns()[0] != "a" {
		t.Error("Columns() exposes internal slice")
	}
}

func TestRow_UnmarshalJSON(t *testing.T) {
	var r Row
	err := json.Unmarshal([]byte(`{"zeta": 1, "alpha": 12345678901234567890, "price": 1.10, "tags": ["a"], "meta": {"k": null}, "gone": null}`), &r)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got := strings.Join(r.Columns(), ","); got != "zeta,alpha,price,tags,meta,gone" {
		t.Errorf("Columns() = %s, want source key order", got)
	}
	if v, _ := r.Get("alpha"); v != json.Number("12345678901234567890") {
		t.Errorf("alpha = %#v, want json.Number", v)
	}
	if v, _ := r.Get("price"); v != json.Number("1.10") {
		t.Errorf("price = %#v, want json.Number(1.10)", v)
	}
	if v, ok := r.Get("gone"); !ok || v != nil {
		t.Errorf("gone = %v, %v, want present nil", v, ok)
	}
}

func TestRow_UnmarshalJSON_Errors(t *testing.T) {
	for _, doc := range []string{`[]`, `"x"`, `{"a": }`} {
		var r Row
		if err := json.Unmarshal([]byte(doc), &r); err == nil {
			t.Errorf("Unmarshal(%s) expected error", doc)
		}
	}
}

func TestRow_UnmarshalJSON_Slice(t *testing.T) {
	var rows []Row
	if err := json.Unmarshal([]byte(`[{"id": 2, "b": 1}, {"b": 2, "id": 3}]`), &rows); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := strings.Join(rows[1].Columns(), ","); got != "b,id" {
		t.Errorf("rows[1].Columns() = %s, want b,id", got)
	}
}

func TestRow_UnmarshalJSON_Null(t *testing.T) {
	var rows []Row
	if err := json.Unmarshal([]byte(`[{"id": 1}, null]`), &rows); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(rows) != 2 || rows[1].Len() != 0 {
		t.Errorf("rows = %+v, want second row empty", rows)
	}

	r := NewRow("id", 7)
	if err := json.Unmarshal([]byte(`null`), &r); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if v, _ := r.Get("id"); v != 7 {
		t.Errorf("null replaced row contents: %v", v)
	}
}
