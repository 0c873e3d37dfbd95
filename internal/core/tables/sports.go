package tables

import "github.com/JonMunkholm/seedexport/internal/core"

func registerSportsTables() {
	core.Register(core.TableSpec{
		Name:             "sports_leagues",
		Group:            "sports",
		PrimaryKey:       "id",
		UniqueConstraint: "league_key",
	})
	core.Register(core.TableSpec{
		Name:       "sports_teams",
		Group:      "sports",
		PrimaryKey: "id",
	})
}
