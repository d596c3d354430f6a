// Package migrations embeds the Postgres schema applied by civicactl migrate.
package migrations

import "embed"

// FS holds the numbered *.up.sql and *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
