// Package migrations embeds the goose migrations for the SQL key/value
// backends. Each dialect lives in its own directory of FS.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

const (
	SQLiteDir   = "sqlite"
	PostgresDir = "postgres"
)
