// Package migrations embeds the catalog's SQL migration files so the
// binary carries its own schema (spec.md §4.5: "on startup, missing
// tables/columns are additively applied").
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
