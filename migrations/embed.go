// Package migrations embeds the SQL schema applied by golang-migrate.
package migrations

import "embed"

//go:embed schema/*.sql
var Schema embed.FS

// Dir is the directory inside Schema holding the migration files.
const Dir = "schema"
