package tables

import "github.com/JonMunkholm/seedexport/internal/core"

func registerFinanceTables() {
	core.Register(core.TableSpec{
		Name:             "alpaca_stocks",
		Group:            "finance",
		PrimaryKey:       "id",
		UniqueConstraint: "symbol",
	})
	core.Register(core.TableSpec{
		Name:             "crypto_assets",
		Group:            "finance",
		PrimaryKey:       "id",
		UniqueConstraint: "symbol",
	})
}
