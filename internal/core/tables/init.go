// Package tables registers the default table specs with the core registry.
// Import this package to ensure all tables are registered.
package tables

// Registration order is export order: referenced tables come first.
func init() {
	registerSystemTables()
	registerFinanceTables()
	registerWeatherTables()
	registerSchoolTables()
	registerSportsTables()
}
