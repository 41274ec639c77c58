package migrations

import "embed"

// PostgresFS embeds the ledger schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS
