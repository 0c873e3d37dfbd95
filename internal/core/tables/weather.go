package tables

import "github.com/JonMunkholm/seedexport/internal/core"

func registerWeatherTables() {
	core.Register(core.TableSpec{
		Name:       "weather_locations",
		Group:      "weather",
		PrimaryKey: "id",
		// Refreshed from the weather provider on every load.
		ExcludeColumns: []string{"current_conditions"},
	})
}
