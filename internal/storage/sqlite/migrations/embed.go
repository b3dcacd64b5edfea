package migrations

import "embed"

// FS contains embedded SQLite migrations for batch and job storage.
//
//go:embed *.sql
var FS embed.FS
