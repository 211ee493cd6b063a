// Package migrations embeds the goose schema migrations for each dialect.
package migrations

import "embed"

// FS holds one directory of migrations per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
