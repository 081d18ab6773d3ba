package migrations

import "embed"

// Files holds the forward-only schema migrations for the relational record store.
// They are written in the SQL subset shared by SQLite and PostgreSQL.
//
//go:embed *.sql
var Files embed.FS
