package tables

import "github.com/JonMunkholm/seedexport/internal/core"

func registerSchoolTables() {
	core.Register(core.TableSpec{
		Name:       "school_closings",
		Group:      "school",
		PrimaryKey: "id",
	})
}
