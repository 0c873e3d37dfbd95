package tables

import "github.com/JonMunkholm/seedexport/internal/core"

// kv_store is the generic key-value table. Its value column is jsonb, so every
// value is exported as a JSON document, including bare strings and arrays.
func registerSystemTables() {
	core.Register(core.TableSpec{
		Name:        "kv_store",
		Group:       "system",
		PrimaryKey:  "key",
		JSONColumns: []string{"value"},
	})
}
