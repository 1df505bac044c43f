// Package migrations embeds the SQL schema applied by golang-migrate.
package migrations

import "embed"

// FS holds the *.sql migration files.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory inside FS that contains the migrations.
const Dir = "."
